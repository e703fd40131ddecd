package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wqabc2008/breakup/sim"
)

var (
	scenarioPath string // Path to the YAML scenario description
	seed         int64  // Master seed for reproducible perturbations
	logLevel     string // Log verbosity level
	outputDir    string // Override for the scenario output directory
	runLogPath   string // Per-step run log destination
	statsPath    string // Scalar statistics destination
	partitions   int    // Override for the scenario worker count

	// Scenario parameter overrides; zero means "use the scenario value".
	densityRatio   float64
	viscosityRatio float64
	reynolds       float64
	weber          float64
	minLevel       int
	maxLevel       int
	endTime        float64
	dt             float64
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "breakup",
	Short: "Adaptive multiphase thread-breakup simulator",
}

// runCmd executes a scenario from start to end_time
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a breakup scenario",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if scenarioPath == "" {
			logrus.Fatalf("No scenario file provided. Exiting.")
		}
		scenario, err := sim.LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("Failed to load scenario: %v", err)
		}
		if outputDir != "" {
			scenario.OutputDir = outputDir
		}
		if partitions > 0 {
			scenario.Partitions = partitions
		}
		applyParamOverrides(scenario)

		metrics, closers, err := openSinks()
		if err != nil {
			logrus.Fatalf("Failed to open output sinks: %v", err)
		}
		defer closers()

		s, err := scenario.Build(sim.BuildOptions{
			Seed:    sim.RunKey(seed),
			Metrics: metrics,
		})
		if err != nil {
			logrus.Fatalf("Failed to build scenario %q: %v", scenario.Name, err)
		}

		logrus.Infof("Starting %q: dim=%d levels=[%d,%d] end_time=%g dt=%g partitions=%d",
			scenario.Name, s.Params.Dim, s.Params.MinLevel, s.Params.MaxLevel,
			s.Params.EndTime, s.Params.Dt, s.NumParts)

		startTime := time.Now()
		if err := s.Run(); err != nil {
			logrus.Fatalf("Run aborted: %v", err)
		}
		s.Metrics.Print(os.Stdout, startTime)
	},
}

// listCmd enumerates the registered expression names and balancer kinds
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered expressions and balancer kinds",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("scalar expressions:")
		for _, n := range sim.AvailableScalarExprs() {
			fmt.Printf("  %s\n", n)
		}
		fmt.Println("vector expressions:")
		for _, n := range sim.AvailableVectorExprs() {
			fmt.Printf("  %s\n", n)
		}
		fmt.Println("balancers:")
		for _, n := range sim.AvailableBalancers() {
			fmt.Printf("  %s\n", n)
		}
	},
}

// openSinks prepares the run-log and statistics writers. Unset paths
// leave the corresponding writer nil, which Metrics treats as discard.
func openSinks() (*sim.Metrics, func(), error) {
	var files []*os.File
	var logW, statsW io.Writer
	if runLogPath != "" {
		f, err := os.Create(runLogPath)
		if err != nil {
			return nil, func() {}, err
		}
		files = append(files, f)
		logW = f
	}
	if statsPath != "" {
		f, err := os.Create(statsPath)
		if err != nil {
			return nil, func() {}, err
		}
		files = append(files, f)
		statsW = f
	}
	closers := func() {
		for _, f := range files {
			f.Close()
		}
	}
	return sim.NewMetrics(logW, statsW), closers, nil
}

// applyParamOverrides copies any set CLI parameter flags over the
// scenario values before validation.
func applyParamOverrides(sc *sim.Scenario) {
	if densityRatio > 0 {
		sc.Parameters.DensityRatio = densityRatio
	}
	if viscosityRatio > 0 {
		sc.Parameters.ViscosityRatio = viscosityRatio
	}
	if reynolds > 0 {
		sc.Parameters.Reynolds = reynolds
	}
	if weber > 0 {
		sc.Parameters.Weber = weber
	}
	if minLevel > 0 {
		sc.Parameters.MinLevel = minLevel
	}
	if maxLevel > 0 {
		sc.Parameters.MaxLevel = maxLevel
	}
	if endTime > 0 {
		sc.Parameters.EndTime = endTime
	}
	if dt > 0 {
		sc.Parameters.Dt = dt
	}
}

func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "YAML scenario description")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for reproducible perturbations")
	runCmd.Flags().StringVar(&logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for snapshot files")
	runCmd.Flags().StringVar(&runLogPath, "run-log", "", "Per-step run log file")
	runCmd.Flags().StringVar(&statsPath, "stats", "", "Scalar statistics file")
	runCmd.Flags().IntVar(&partitions, "partitions", 0, "Worker partition count override")
	runCmd.Flags().Float64Var(&densityRatio, "density-ratio", 0, "Override scenario density ratio")
	runCmd.Flags().Float64Var(&viscosityRatio, "viscosity-ratio", 0, "Override scenario viscosity ratio")
	runCmd.Flags().Float64Var(&reynolds, "reynolds", 0, "Override scenario Reynolds number")
	runCmd.Flags().Float64Var(&weber, "weber", 0, "Override scenario Weber number")
	runCmd.Flags().IntVar(&minLevel, "minlevel", 0, "Override scenario minimum refinement level")
	runCmd.Flags().IntVar(&maxLevel, "maxlevel", 0, "Override scenario maximum refinement level")
	runCmd.Flags().Float64Var(&endTime, "end-time", 0, "Override scenario end time")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "Override scenario time increment")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
