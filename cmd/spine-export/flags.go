package main

import "flag"

// Flags holds all command-line flags
type Flags struct {
	// Commands
	Preview      *bool
	List         *bool
	CreateConfig *bool

	// Options
	Config    *string
	MaxTables *int
	MaxRows   *int
	Workers   *int
	Verbose   *bool

	// Misc
	Version *bool
}

// ParseFlags defines and parses all command-line flags
func ParseFlags(args []string) (*Flags, error) {
	fs := flag.NewFlagSet("spine-export", flag.ContinueOnError)
	f := &Flags{}

	// Commands
	f.Preview = fs.Bool("preview", false, "Print preview tables for every enabled mapping instead of exporting")
	f.List = fs.Bool("list", false, "List mappings of the specification")
	f.CreateConfig = fs.Bool("create-config", false, "Create sample run.yaml and specification.json")

	// Options
	f.Config = fs.String("config", "run.yaml", "Run configuration file path")
	f.MaxTables = fs.Int("max-tables", 20, "Preview: maximum tables per mapping (0 = unlimited)")
	f.MaxRows = fs.Int("max-rows", 20, "Preview: maximum rows per table (0 = unlimited)")
	f.Workers = fs.Int("workers", 0, "Preview: worker pool size (0 = number of CPUs)")
	f.Verbose = fs.Bool("verbose", false, "Enable debug logging")

	// Misc
	f.Version = fs.Bool("version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}
