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

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"github.com/sweassim/varda/InputParameters"
	"github.com/sweassim/varda/obs"
	"github.com/sweassim/varda/store"
	"github.com/sweassim/varda/swe"
)

// DatasetCmd represents the dataset command
var DatasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Generate a synthetic observation dataset",
	Long: `
Draws random smooth initial conditions, rolls each forward through the
shallow-water model and persists (initial condition, observation, mask)
triples as numbered artifacts.`,
	Run: func(cmd *cobra.Command, args []string) {
		paramsFile, _ := cmd.Flags().GetString("paramsFile")
		dbPath, _ := cmd.Flags().GetString("db")
		seed, _ := cmd.Flags().GetUint64("seed")
		ip := processParams(paramsFile)
		RunDataset(ip, dbPath, seed)
	},
}

func init() {
	rootCmd.AddCommand(DatasetCmd)
	DatasetCmd.Flags().StringP("paramsFile", "I", "", "YAML file with run parameters; defaults used when empty")
	DatasetCmd.Flags().StringP("db", "o", "varda.db", "artifact database path")
	DatasetCmd.Flags().Uint64P("seed", "s", 42, "random seed; same seed reproduces the dataset exactly")
}

func processParams(paramsFile string) (ip *InputParameters.AssimParameters) {
	ip = InputParameters.Defaults()
	if len(paramsFile) == 0 {
		fmt.Println("no parameters file supplied, using defaults")
		ip.Print()
		return
	}
	data, err := os.ReadFile(paramsFile)
	if err != nil {
		fmt.Printf("error reading parameters file: %s\n", err.Error())
		os.Exit(1)
	}
	if err = ip.Parse(data); err != nil {
		fmt.Printf("error parsing parameters file: %s\n", err.Error())
		os.Exit(1)
	}
	ip.Print()
	return
}

func newSim(ip *InputParameters.AssimParameters) *swe.Sim {
	sim, err := swe.NewSim(swe.Params{
		Nx: ip.Nx, Ny: ip.Ny,
		Dx: ip.Dx, Dy: ip.Dy, Dt: ip.Dt,
		Gravity: ip.Gravity, Depth: ip.Depth,
		Coriolis: ip.Coriolis, Drag: ip.Drag,
	})
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	return sim
}

func RunDataset(ip *InputParameters.AssimParameters, dbPath string, seed uint64) {
	sim := newSim(ip)
	gen, err := obs.NewGenerator(sim, ip.WindowLength, ip.Subsample, ip.Sigma, rand.NewSource(seed))
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	st, err := store.Open(context.Background(), dbPath)
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	defer st.Close()
	if err = gen.Dataset(ip.NSamples, st); err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	fmt.Printf("wrote %d samples to %s\n", ip.NSamples, dbPath)
}
