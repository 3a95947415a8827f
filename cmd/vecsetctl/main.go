// Command vecsetctl is a maintenance CLI for local vecset database files.
// It performs no VADD/VSIM-style verb parsing; it is a thin wrapper around
// internal/store for creating, inspecting, and poking at a single .db file
// from a shell, in the structure of the teacher's cmd/sqvect tool.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/vecset/internal/store"
	"github.com/liliang-cn/vecset/pkg/vecset"
)

var (
	dbPath    string
	dimension int
	quantize  string
	mLinks    int
	jsonOut   bool
)

var rootCmd = &cobra.Command{
	Use:   "vecsetctl",
	Short: "maintenance CLI for vecset database files",
	Long:  "vecsetctl creates, inspects, and queries a vecset HNSW index persisted to a local SQLite file.",
}

func quantMode() (vecset.Quantization, error) {
	switch strings.ToLower(quantize) {
	case "", "none":
		return vecset.QuantNone, nil
	case "scalar8", "q8":
		return vecset.QuantScalar8, nil
	case "binary", "bin":
		return vecset.QuantBinary, nil
	default:
		return 0, fmt.Errorf("unknown quantization mode %q (want none|scalar8|binary)", quantize)
	}
}

func openStore(ctx context.Context) (*store.Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path not specified (use --db)")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("--dim must be a positive integer")
	}
	q, err := quantMode()
	if err != nil {
		return nil, err
	}
	params := vecset.DefaultParams(dimension)
	params.Quantize = q
	if mLinks > 0 {
		params.M = mLinks
	}
	return store.Open(ctx, dbPath, params)
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vec = append(vec, float32(v))
	}
	return vec, nil
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "create a new vecset database file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)
		info := s.Info()
		fmt.Printf("created %s: dim=%d quantize=%s\n", dbPath, dimension, info.Stats.Quantize)
		return nil
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert <vector>",
	Short: "insert a comma-separated vector, printing its assigned member ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vec, err := parseVector(args[0])
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetString("id")
		attrStr, _ := cmd.Flags().GetString("attr")

		var value any
		if attrStr != "" {
			if err := json.Unmarshal([]byte(attrStr), &value); err != nil {
				return fmt.Errorf("invalid --attr JSON: %w", err)
			}
		}

		ctx := context.Background()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		extID, err := s.Insert(ctx, vec, value, id)
		if err != nil {
			return err
		}
		fmt.Println(extID)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <vector>",
	Short: "search for the nearest members to a comma-separated vector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vec, err := parseVector(args[0])
		if err != nil {
			return err
		}
		k, _ := cmd.Flags().GetInt("k")

		ctx := context.Background()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		results, err := s.Search(vec, k)
		if err != nil {
			return err
		}
		if jsonOut {
			data, _ := json.MarshalIndent(results, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		for i, r := range results {
			fmt.Printf("%d. %s (dist=%.4f) value=%v\n", i+1, r.ID, r.Dist, r.Value)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "delete a member by external ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		if err := s.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "display index shape and storage path",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		info := s.Info()
		if jsonOut {
			data, _ := json.MarshalIndent(info, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("path:       %s\n", info.Path)
		fmt.Printf("live:       %d\n", info.Stats.Live)
		fmt.Printf("deleted:    %d\n", info.Stats.Deleted)
		fmt.Printf("max level:  %d\n", info.Stats.MaxLevel)
		fmt.Printf("entry set:  %v\n", info.Stats.EntrySet)
		fmt.Printf("quantize:   %s\n", info.Stats.Quantize)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "run the independent reciprocity/reachability check over the graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		reachable, reciprocal := s.Validate()
		fmt.Printf("reachable: %d\n", reachable)
		fmt.Printf("reciprocal: %v\n", reciprocal)
		if !reciprocal {
			return fmt.Errorf("graph failed reciprocity check")
		}
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "dump every live member as newline-delimited JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		return s.Dump(os.Stdout)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "vecset.db", "database file path")
	rootCmd.PersistentFlags().IntVarP(&dimension, "dim", "n", 0, "vector dimensionality")
	rootCmd.PersistentFlags().StringVar(&quantize, "quantize", "none", "quantization mode: none|scalar8|binary")
	rootCmd.PersistentFlags().IntVar(&mLinks, "m", 0, "link budget M (0 selects the default of 16)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output JSON where supported")

	insertCmd.Flags().String("id", "", "external member ID (generated if omitted)")
	insertCmd.Flags().String("attr", "", "attribute value as a JSON literal")

	searchCmd.Flags().Int("k", 10, "number of neighbors to return")

	rootCmd.AddCommand(createCmd, insertCmd, searchCmd, deleteCmd, infoCmd, validateCmd, dumpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
