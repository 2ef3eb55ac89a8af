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
	"fmt"
	"math"
	"os"

	"github.com/notargets/subflow/InputParameters"
	"github.com/notargets/subflow/comm"
	"github.com/notargets/subflow/coordinator"
	"github.com/notargets/subflow/flow"
	"github.com/notargets/subflow/mesh"
	"github.com/notargets/subflow/utils"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type ModelDarcy struct {
	ICFile  string
	Ranks   int
	Profile string
}

// DarcyCmd represents the darcy command
var DarcyCmd = &cobra.Command{
	Use:   "darcy",
	Short: "Saturated Darcy flow solver driven by a YAML input deck",
	Long: `
Runs the Darcy flow kernel over a structured box, partitioned across ranks,

subflow darcy -I input.yaml -n 4`,
	Run: func(cmd *cobra.Command, args []string) {
		md := &ModelDarcy{
			Ranks:   viper.GetInt("ranks"),
			Profile: viper.GetString("profile"),
		}
		md.ICFile, _ = cmd.Flags().GetString("inputConditionsFile")
		if len(md.ICFile) == 0 {
			fmt.Printf("error: must supply an input parameters file (-I, --inputConditionsFile)\n")
			fmt.Printf("Example File:%s\n", exampleDeck)
			os.Exit(1)
		}
		if err := RunDarcy(md); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

var exampleDeck = `
########################################
title: "Column"
mesh:
  cells: [1, 10]
  high: [1, 10]
materials:
  - kh: 1.e-12
    kv: 1.e-12
    specificStorage: 1.e-5
initialPressure:
  type: hydrostatic
  waterTable: 10
boundaryConditions:
  - name: top
    type: pressure
    regions: [Top]
    value: 101325
  - name: bottom
    type: head
    regions: [Bottom]
    times: [0, 1.e6]
    values: [10, 12]
timeIntegration:
  mode: initialize to steady
  switch: 1.e5
  end: 1.e7
  steadyInitialDT: 1.e5
  transientInitialDT: 1.e3
########################################
`

func init() {
	rootCmd.AddCommand(DarcyCmd)
	DarcyCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for the input deck: mesh, materials, boundary conditions and time integration")
	DarcyCmd.Flags().IntP("ranks", "n", 1, "number of ranks the mesh is partitioned across")
	DarcyCmd.Flags().String("profile", "", "write a cpu or mem profile to the current directory")
	_ = viper.BindPFlag("ranks", DarcyCmd.Flags().Lookup("ranks"))
	_ = viper.BindPFlag("profile", DarcyCmd.Flags().Lookup("profile"))
}

func RunDarcy(md *ModelDarcy) (err error) {
	var (
		data []byte
		deck = &InputParameters.Deck{}
	)
	if data, err = os.ReadFile(md.ICFile); err != nil {
		return
	}
	if err = deck.Parse(data); err != nil {
		return
	}
	deck.Print()
	switch md.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(".")).Stop()
	case "":
	default:
		return fmt.Errorf("unknown profile %q, use cpu or mem", md.Profile)
	}
	if md.Ranks < 1 {
		md.Ranks = 1
	}
	err = comm.NewWorld(md.Ranks).Run(func(c *comm.Comm) error {
		return runRank(deck, c)
	})
	logrus.Info(utils.GetMemUsage())
	return
}

func runRank(deck *InputParameters.Deck, c *comm.Comm) (err error) {
	var (
		m    *mesh.Structured
		s    *flow.State
		pk   *flow.DarcyPK
		co   *coordinator.Coordinator
		fcfg flow.Config
		ccfg coordinator.Config
		log  = logrus.WithField("rank", c.Rank())
	)
	if m, err = deck.NewMesh(c); err != nil {
		return
	}
	if s, err = deck.NewState(m); err != nil {
		return
	}
	if fcfg, err = deck.FlowConfig(); err != nil {
		return
	}
	if ccfg, err = deck.CoordinatorConfig(); err != nil {
		return
	}
	if pk, err = flow.NewDarcyPK(s, fcfg, logrus.StandardLogger()); err != nil {
		return
	}
	if co, err = coordinator.New(pk, ccfg, logrus.StandardLogger()); err != nil {
		return
	}
	report := func(cycle int, s *flow.State) {
		pmin, pmax := pressureRange(s)
		if c.Rank() == 0 {
			fmt.Printf("Cycle = %d, Time = %8.5g, Pressure = [%8.5g, %8.5g]\n", cycle, s.Time, pmin, pmax)
		}
	}
	if err = co.Run(report); err != nil {
		return
	}
	log.WithFields(logrus.Fields{
		"cycles": co.Cycle,
		"T":      s.Time,
	}).Debug("run complete")
	return
}

// pressureRange is collective
func pressureRange(s *flow.State) (pmin, pmax float64) {
	pmin, pmax = math.Inf(1), math.Inf(-1)
	for _, p := range s.Pressure.ViewComponent(mesh.Cell, false) {
		pmin, pmax = math.Min(pmin, p), math.Max(pmax, p)
	}
	c := s.Mesh.Comm()
	return c.MinAll(pmin), c.MaxAll(pmax)
}
