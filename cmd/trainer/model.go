package main

import (
	"github.com/gomlx/gomlx/backends"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/layers/activations"
	fnnLayer "github.com/gomlx/gomlx/ml/layers/fnn"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/ml/train/optimizers"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"

	"github.com/janpfeifer/criteria/minibatch"
)

// sineModel is a small FNN regression that learns sin(x). It is here only to
// drive the criterion accumulator with real graph-computed values.
type sineModel struct {
	ctx     *context.Context
	backend backends.Backend

	optimizer optimizers.Interface

	// Executors: one training step, and criterion readouts. Criterion execs
	// return the *sum* over the minibatch, not the mean -- averaging is done
	// by the accumulator at report time, with the true sample counts.
	trainStepExec, lossSumExec, absErrSumExec *context.Exec
}

func newSineModel(backend backends.Backend) *sineModel {
	m := &sineModel{ctx: context.New(), backend: backend}
	m.ctx.RngStateReset()
	m.ctx.SetParams(map[string]any{
		optimizers.ParamOptimizer:    "adam",
		optimizers.ParamLearningRate: *flagLearningRate,

		activations.ParamActivation:   "tanh",
		fnnLayer.ParamNumHiddenLayers: 2,
		fnnLayer.ParamNumHiddenNodes:  32,
	})
	m.ctx = m.ctx.Checked(false)
	m.optimizer = optimizers.FromContext(m.ctx)

	m.trainStepExec = context.NewExec(backend, m.ctx,
		func(ctx *context.Context, inputs []*Node) *Node {
			g := inputs[0].Graph()
			ctx.SetTraining(g, true)
			lossSum, numUsed := m.lossSumGraph(ctx, inputs)
			meanLoss := Div(lossSum, ConvertDType(numUsed, dtypes.Float32))
			m.optimizer.UpdateGraph(ctx, g, meanLoss)
			train.ExecPerStepUpdateGraphFn(ctx, g)
			return lossSum
		})
	m.lossSumExec = context.NewExec(backend, m.ctx,
		func(ctx *context.Context, inputs []*Node) *Node {
			lossSum, _ := m.lossSumGraph(ctx, inputs)
			return lossSum
		})
	m.absErrSumExec = context.NewExec(backend, m.ctx,
		func(ctx *context.Context, inputs []*Node) *Node {
			diff := m.maskedDiffGraph(ctx, inputs)
			return ReduceAllSum(Abs(diff))
		})
	return m
}

// forwardGraph predicts sin(x) for inputs[0], shaped [batchSize, 1].
func (m *sineModel) forwardGraph(ctx *context.Context, inputs []*Node) *Node {
	x := inputs[0]
	predictions := fnnLayer.New(ctx.In("fnn"), x, 1).Done()
	predictions.AssertDims(x.Shape().Dim(0), 1)
	return predictions
}

// maskedDiffGraph returns prediction-label differences with the batch padding
// zeroed out, so padded rows contribute nothing to any criterion.
// inputs are [x, labels, numUsed].
func (m *sineModel) maskedDiffGraph(ctx *context.Context, inputs []*Node) *Node {
	x, labels, numUsed := inputs[0], inputs[1], inputs[2]
	g := x.Graph()
	diff := Sub(m.forwardGraph(ctx, inputs), labels)
	batchSize := x.Shape().Dim(0)
	batchMask := LessThan(Iota(g, shapes.Make(dtypes.Int32, batchSize, 1), 0), numUsed)
	return Where(batchMask, diff, ZerosLike(diff))
}

// lossSumGraph returns the summed squared error of the minibatch and the
// number of samples it covers (as a graph node).
func (m *sineModel) lossSumGraph(ctx *context.Context, inputs []*Node) (lossSum, numUsed *Node) {
	diff := m.maskedDiffGraph(ctx, inputs)
	return ReduceAllSum(Mul(diff, diff)), inputs[2]
}

// makeBatch packs examples [from:to) into padded [batchSize, 1] tensors plus
// the minibatch layout describing which rows are real samples.
func makeBatch(xs, ys []float32, from, to, batchSize int) (inputs []*tensors.Tensor, layout *minibatch.Layout) {
	numUsed := to - from
	xT := tensors.FromShape(shapes.Make(dtypes.Float32, batchSize, 1))
	tensors.MutableFlatData(xT, func(flat []float32) {
		copy(flat, xs[from:to])
	})
	yT := tensors.FromShape(shapes.Make(dtypes.Float32, batchSize, 1))
	tensors.MutableFlatData(yT, func(flat []float32) {
		copy(flat, ys[from:to])
	})

	// Each example is a length-1 sequence; padded rows are length-0.
	lengths := make([]int, batchSize)
	for i := range numUsed {
		lengths[i] = 1
	}
	layout = minibatch.NewLayout(lengths...)

	inputs = []*tensors.Tensor{xT, yT, tensors.FromScalar(int32(numUsed))}
	return
}
