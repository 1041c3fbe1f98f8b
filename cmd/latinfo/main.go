// latinfo inspects lattice field shapes and the live-field registry.
//
// It reads a YAML grid specification, constructs fields against the host
// storage engine, and reports descriptions, byte accounting, and bookkeeping
// state without touching any field contents.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sbl8/gridfield/book"
	"github.com/sbl8/gridfield/comms"
	"github.com/sbl8/gridfield/field"
	"github.com/sbl8/gridfield/grid"
	"github.com/sbl8/gridfield/logging"
	"github.com/sbl8/gridfield/otype"
	"github.com/sbl8/gridfield/storage"
)

// gridSpec is the YAML form of a grid description.
type gridSpec struct {
	Dims         []int  `yaml:"dims"`
	Precision    string `yaml:"precision"`
	Processors   int    `yaml:"processors"`
	Checkerboard int    `yaml:"checkerboard"`
}

func loadGrid(path string) (*grid.Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec gridSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	prec := grid.Double
	switch spec.Precision {
	case "", "double":
	case "single":
		prec = grid.Single
	default:
		return nil, fmt.Errorf("unknown precision %q", spec.Precision)
	}
	if spec.Processors == 0 {
		spec.Processors = 1
	}
	if spec.Checkerboard == 0 {
		spec.Checkerboard = 1
	}
	var comm comms.Communicator = comms.Single{}
	if spec.Processors > 1 {
		comm = comms.Pretend{MyRank: 0, NumRank: spec.Processors}
	}
	return grid.NewSplit(spec.Dims, prec, comm, spec.Checkerboard)
}

func main() {
	logger := logging.Default()

	var gridPath string
	var otypeNames string

	root := &cobra.Command{
		Use:   "latinfo",
		Short: "Inspect lattice field shapes and the live-field registry",
	}
	root.PersistentFlags().StringVar(&gridPath, "grid", "grid.yaml", "path to the YAML grid specification")

	describe := &cobra.Command{
		Use:   "describe",
		Short: "Print description and byte accounting for fields on a grid",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGrid(gridPath)
			if err != nil {
				return err
			}
			eng := storage.NewHost()
			fmt.Printf("grid: %s  sites=%d  local=%d  stored=%d\n",
				g.Describe(), g.GlobalSites(), g.LocalSites(), g.StoredSites())
			for _, name := range strings.Split(otypeNames, ",") {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				ot, err := otype.Parse(name)
				if err != nil {
					return err
				}
				l, err := field.New(g, ot, eng)
				if err != nil {
					return err
				}
				fmt.Printf("%-16s desc=%s sub-objects=%d global=%d bytes rank=%d bytes\n",
					ot.Name, l.Describe(), l.SubObjects(), l.GlobalBytes(), l.RankBytes())
				if err := l.Close(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	describe.Flags().StringVar(&otypeNames, "otype", "complex", "comma-separated object type names")

	registry := &cobra.Command{
		Use:   "registry",
		Short: "Allocate fields and dump the bookkeeping registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGrid(gridPath)
			if err != nil {
				return err
			}
			eng := storage.NewHost()
			var open []*field.Lattice
			for _, name := range strings.Split(otypeNames, ",") {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				ot, err := otype.Parse(name)
				if err != nil {
					return err
				}
				l, err := field.New(g, ot, eng)
				if err != nil {
					return err
				}
				open = append(open, l)
			}
			fmt.Printf("live containers: %d\n", book.Default.Len())
			fmt.Print(book.Default.Report())
			for _, l := range open {
				if err := l.Close(); err != nil {
					return err
				}
			}
			return nil
		},
	}
	registry.Flags().StringVar(&otypeNames, "otype", "complex", "comma-separated object type names")

	root.AddCommand(describe, registry)
	if err := root.Execute(); err != nil {
		logger.Error("latinfo failed", "error", err)
		os.Exit(1)
	}
}
