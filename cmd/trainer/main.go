// Command trainer is a demo training loop for the criterion accumulator: it
// fits a tiny FNN to sin(x) and uses the criteria package the way a real
// training driver would -- Assign on the first minibatch of each epoch, Add on
// the rest, checkpoint deltas while the epoch runs, divergence detection,
// best-so-far tracking, and parallel evaluation shards merged into one
// epoch-level value.
package main

import (
	"context"
	"flag"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"

	"github.com/chewxy/math32"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/janpfeifer/criteria/criterion"
	"github.com/janpfeifer/criteria/internal/generics"
	"github.com/janpfeifer/criteria/minibatch"
)

var (
	flagNumEpochs    = flag.Int("num_epochs", 50, "Number of epochs to train for.")
	flagBatchSize    = flag.Int("batch_size", 64, "Minibatch size. The last batch of an epoch is padded to it.")
	flagNumTrain     = flag.Int("num_train", 4000, "Number of training examples to generate.")
	flagNumEval      = flag.Int("num_eval", 1000, "Number of held-out examples to evaluate on.")
	flagEvalShards   = flag.Int("eval_shards", 4, "Number of parallel evaluation workers; their partial results are merged.")
	flagLearningRate = flag.Float64("learning_rate", 0.001, "Learning rate for Adam.")
	flagSeed         = flag.Uint64("seed", 42, "Seed for the data generator, for reproducibility.")
	flagReportEvery  = flag.Int("report_every", 20, "Log the loss delta every these many minibatches (requires -v=1).")
)

// Criterion slots tracked by the training accumulator.
const (
	lossSlot = iota
	maeSlot
	numCriteria
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	// Capture Control+C.
	globalCtx, globalCancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer globalCancel()

	backend := backends.New()
	klog.V(1).Infof("Using backend %s", backend.Name())
	model := newSineModel(backend)
	must.M(trainLoop(globalCtx, backend, model))
}

// genData generates n examples of y = sin(x), x uniform in [-pi, pi].
func genData(rng *rand.Rand, n int) (xs, ys []float32) {
	xs = make([]float32, n)
	ys = make([]float32, n)
	for i := range n {
		x := float32(rng.Float64()*2-1) * math.Pi
		xs[i] = x
		ys[i] = math32.Sin(x)
	}
	return
}

func trainLoop(ctx context.Context, backend backends.Backend, model *sineModel) error {
	rng := rand.New(rand.NewPCG(*flagSeed, 0))
	trainXs, trainYs := genData(rng, *flagNumTrain)
	evalXs, evalYs := genData(rng, *flagNumEval)

	acc, err := criterion.New[float32](backend, numCriteria)
	if err != nil {
		return err
	}

	var cumulative criterion.EpochValue
	best := criterion.Infinity()
	bestEpoch := -1
	printHeader()

	numTrain := len(trainXs)
	sx := make([]float32, numTrain)
	sy := make([]float32, numTrain)
	for epoch := range *flagNumEpochs {
		if ctx.Err() != nil {
			klog.Infof("Interrupted after %d epochs.", epoch)
			break
		}
		for i, j := range rng.Perm(numTrain) {
			sx[i], sy[i] = trainXs[j], trainYs[j]
		}

		var checkpoint criterion.EpochValue
		for b := 0; b < numTrain; b += *flagBatchSize {
			to := min(b+*flagBatchSize, numTrain)
			inputs, layout := makeBatch(sx, sy, b, to, *flagBatchSize)
			lossT := model.trainStepExec.Call(inputs[0], inputs[1], inputs[2])[0]
			maeT := model.absErrSumExec.Call(inputs[0], inputs[1], inputs[2])[0]
			nodes := []criterion.Node{
				minibatch.NewOutputNode[float32]("loss", lossT, layout),
				minibatch.NewOutputNode[float32]("mae", maeT, layout),
			}
			if b == 0 {
				// First minibatch of the epoch resets the slots.
				acc.Assign(nodes, lossSlot, to-b).Assign(nodes, maeSlot, to-b)
			} else {
				acc.Add(nodes, lossSlot, to-b).Add(nodes, maeSlot, to-b)
			}

			if batchIdx := b / *flagBatchSize; klog.V(1).Enabled() && *flagReportEvery > 0 &&
				batchIdx%*flagReportEvery == *flagReportEvery-1 {
				current := acc.GetCriterion(lossSlot)
				klog.V(1).Infof("epoch %d, batch %d: loss since last report %s",
					epoch, batchIdx, current.Sub(checkpoint))
				checkpoint = current
			}
		}

		epochLoss := acc.GetCriterion(lossSlot)
		epochMAE := acc.GetCriterion(maeSlot)
		if epochLoss.IsNaN() {
			reportDiverged(epoch)
			return errors.Errorf("training diverged: loss is NaN at epoch %d", epoch)
		}
		cumulative.Accumulate(epochLoss)

		evalLoss, err := parallelEval(ctx, backend, model, evalXs, evalYs)
		if err != nil {
			return err
		}
		isBest := best.IsInfinity() || evalLoss.Average() < best.Average()
		if isBest {
			best = evalLoss
			bestEpoch = epoch
		}
		reportEpoch(epoch, epochLoss, epochMAE, evalLoss, cumulative, isBest)
	}
	reportFinal(bestEpoch, best)
	return nil
}

// parallelEval splits the held-out set over workers, each accumulating into
// its own single-owner accumulator, and merges their partial EpochValues.
func parallelEval(ctx context.Context, backend backends.Backend, model *sineModel, xs, ys []float32) (criterion.EpochValue, error) {
	numShards := max(*flagEvalShards, 1)
	shardSize := (len(xs) + numShards - 1) / numShards

	var mu sync.Mutex
	var merged criterion.EpochValue
	var wg errgroup.Group
	for shard := range numShards {
		from := shard * shardSize
		to := min(from+shardSize, len(xs))
		if from >= to {
			continue
		}
		wg.Go(func() error {
			acc, err := criterion.New[float32](backend, 1)
			if err != nil {
				return err
			}
			for b := from; b < to; b += *flagBatchSize {
				if err := ctx.Err(); err != nil {
					return err
				}
				bTo := min(b+*flagBatchSize, to)
				inputs, layout := makeBatch(xs, ys, b, bTo, *flagBatchSize)
				donated := generics.SliceMap(inputs, func(t *tensors.Tensor) any {
					return graph.DonateTensorBuffer(t, backend)
				})
				lossT := model.lossSumExec.Call(donated...)[0]
				nodes := []criterion.Node{minibatch.NewOutputNode[float32]("eval_loss", lossT, layout)}
				if b == from {
					acc.Assign(nodes, 0, bTo-b)
				} else {
					acc.Add(nodes, 0, bTo-b)
				}
			}
			partial := acc.GetCriterion(0)
			mu.Lock()
			defer mu.Unlock()
			merged.Accumulate(partial)
			return nil
		})
	}
	err := wg.Wait()
	return merged, err
}
