/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"github.com/sweassim/varda/InputParameters"
	"github.com/sweassim/varda/assim"
	"github.com/sweassim/varda/metrics"
	"github.com/sweassim/varda/obs"
	"github.com/sweassim/varda/prior"
	"github.com/sweassim/varda/store"
	"github.com/sweassim/varda/swe"
)

// RunCmd represents the run command
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Fit all three 4D-Var variants over a dataset and score them",
	Long: `
For each dataset sample, fits the plain, smoothness-regularized and
deep-prior 4D-Var variants against the stored observations, persists each
recovered initial condition, and writes the aggregate results array
(sample x method x metric) with ground truth as the zero-error reference
method.`,
	Run: func(cmd *cobra.Command, args []string) {
		paramsFile, _ := cmd.Flags().GetString("paramsFile")
		dbPath, _ := cmd.Flags().GetString("db")
		seed, _ := cmd.Flags().GetUint64("seed")
		workers, _ := cmd.Flags().GetInt("workers")
		prof, _ := cmd.Flags().GetBool("profile")
		if prof {
			defer profile.Start(profile.CPUProfile).Stop()
		}
		ip := processParams(paramsFile)
		RunAssim(ip, dbPath, seed, workers)
	},
}

func init() {
	rootCmd.AddCommand(RunCmd)
	RunCmd.Flags().StringP("paramsFile", "I", "", "YAML file with run parameters; defaults used when empty")
	RunCmd.Flags().StringP("db", "o", "varda.db", "artifact database path")
	RunCmd.Flags().Uint64P("seed", "s", 42, "random seed for per-sample generator initialization")
	RunCmd.Flags().IntP("workers", "w", 1, "concurrent samples; each sample owns its simulator and optimizer state")
	RunCmd.Flags().BoolP("profile", "p", false, "write a CPU profile for the run")
}

func RunAssim(ip *InputParameters.AssimParameters, dbPath string, seed uint64, workers int) {
	sim := newSim(ip)
	st, err := store.Open(context.Background(), dbPath)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	defer st.Close()
	eval, err := metrics.NewEvaluator(ip.Ny, ip.Nx, ip.Dx, ip.Dy)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	if workers < 1 {
		workers = 1
	}
	// Samples are independent; fan them out over a fixed worker pool, each
	// sample exclusively owning its optimizers.
	var (
		wg     sync.WaitGroup
		jobs   = make(chan int)
		failed = make(chan int, ip.NSamples)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := runSample(ip, sim, st, eval, i, seed); err != nil {
					fmt.Printf("sample %d failed: %s\n", i, err.Error())
					failed <- i
				}
			}
		}()
	}
	for i := 0; i < ip.NSamples; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(failed)
	nFailed := len(failed)
	fmt.Printf("run complete: %d/%d samples scored, %d failed\n",
		ip.NSamples-nFailed, ip.NSamples, nFailed)
}

// runSample fits the three variants on one sample. A missing artifact or a
// diverged fit fails this sample only.
func runSample(ip *InputParameters.AssimParameters, sim *swe.Sim, st *store.Store,
	eval *metrics.Evaluator, sample int, seed uint64) error {
	icFlat, err := st.LoadField(sample, obs.KindInitial)
	if err != nil {
		return err
	}
	obsv, err := st.LoadField(sample, obs.KindObs)
	if err != nil {
		return err
	}
	mask, err := st.LoadField(sample, obs.KindMask)
	if err != nil {
		return err
	}
	truth, err := swe.StateFromFlat(ip.Ny, ip.Nx, icFlat)
	if err != nil {
		return err
	}

	regul, err := assim.NewSmoothRegul(ip.Alpha, ip.Beta, ip.Dx, ip.Dy)
	if err != nil {
		return err
	}
	gen, err := prior.NewGenerator(ip.Ny, ip.Nx, ip.LatentChannels, ip.HiddenChannels,
		rand.NewSource(seed+uint64(sample)+1))
	if err != nil {
		return err
	}
	vcfg := assim.VarConfig{MaxIterations: ip.VarIterations, LogEvery: ip.LogEvery}
	plain, err := assim.NewPlainVar(sim, ip.WindowLength, vcfg)
	if err != nil {
		return err
	}
	smooth, err := assim.NewSmoothRegularizedVar(sim, ip.WindowLength, regul, vcfg)
	if err != nil {
		return err
	}
	deep, err := assim.NewDeepPriorVar(sim, ip.WindowLength, gen, nil, assim.DeepPriorConfig{
		Epochs:       ip.DeepEpochs,
		LearningRate: ip.DeepLearningRate,
		Beta1:        ip.DeepBeta1,
		LogEvery:     ip.LogEvery * 10,
	})
	if err != nil {
		return err
	}

	if err := st.SaveScores(sample, store.MethodTruth, scoreSlice(eval.Score(truth, truth))); err != nil {
		return err
	}
	fits := []struct {
		fitter assim.Fitter
		method int
		kind   string
	}{
		{plain, store.MethodPlain, store.KindPlainEstimate},
		{smooth, store.MethodSmooth, store.KindSmoothEstimate},
		{deep, store.MethodDeepPrior, store.KindDeepEstimate},
	}
	for _, f := range fits {
		est, err := f.fitter.Fit(obsv, mask)
		if err != nil {
			return err
		}
		if err := st.SaveField(sample, f.kind, est.Flat()); err != nil {
			return err
		}
		scores := eval.Score(est, truth)
		if err := st.SaveScores(sample, f.method, scoreSlice(scores)); err != nil {
			return err
		}
		fmt.Printf("sample %d %s: EPE = %8.5f, angular = %8.5f\n",
			sample, f.kind, scores[metrics.MetricEPE], scores[metrics.MetricAngular])
	}
	return nil
}

func scoreSlice(s [metrics.NumMetrics]float64) []float64 {
	return s[:]
}
