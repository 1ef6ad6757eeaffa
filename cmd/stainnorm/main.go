package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"stainnorm/internal/models"
	"stainnorm/pkg/config"
	"stainnorm/pkg/imageio"
	"stainnorm/pkg/macenko"
	"stainnorm/pkg/visualization"
)

// options holds the parsed command line
type options struct {
	imageFile   string
	saveFile    string
	configPath  string
	writeConfig bool

	io         float64
	alpha      float64
	beta       float64
	saveStains bool
	saveMaps   bool
	savePanel  bool
	verbose    bool

	// set records the flags given explicitly
	set map[string]bool
}

// parseOptions parses args (without the program name)
func parseOptions(args []string) (*options, *flag.FlagSet, error) {
	opts := &options{set: make(map[string]bool)}
	fs := flag.NewFlagSet("stainnorm", flag.ContinueOnError)
	fs.StringVar(&opts.imageFile, "imageFile", "", "RGB image file to normalize")
	fs.StringVar(&opts.saveFile, "saveFile", "output.png", "Normalized image file")
	fs.StringVar(&opts.configPath, "config", "stainnorm.yaml", "YAML configuration file (defaults are used if missing)")
	fs.BoolVar(&opts.writeConfig, "write-config", false, "Write the default configuration to -config and exit")
	fs.Float64Var(&opts.io, "Io", macenko.DefaultIo, "Transmitted light intensity")
	fs.Float64Var(&opts.alpha, "alpha", macenko.DefaultAlpha, "Percentile for the robust stain angle extremes (0-50)")
	fs.Float64Var(&opts.beta, "beta", macenko.DefaultBeta, "Optical density threshold for background pixels")
	fs.BoolVar(&opts.saveStains, "stains", true, "Save hematoxylin and eosin images next to the output")
	fs.BoolVar(&opts.saveMaps, "maps", false, "Save 16-bit concentration maps")
	fs.BoolVar(&opts.savePanel, "panel", false, "Save a side-by-side comparison panel")
	fs.BoolVar(&opts.verbose, "verbose", true, "Print progress")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})
	return opts, fs, nil
}

// apply copies the explicitly given flags over the config file values
func (o *options) apply(cfg *config.Config) {
	if o.set["Io"] {
		cfg.Normalization.Io = o.io
	}
	if o.set["alpha"] {
		cfg.Normalization.Alpha = o.alpha
	}
	if o.set["beta"] {
		cfg.Normalization.Beta = o.beta
	}
	if o.set["stains"] {
		cfg.Output.SaveStainImages = o.saveStains
	}
	if o.set["maps"] {
		cfg.Output.SaveConcentrationMaps = o.saveMaps
	}
	if o.set["panel"] {
		cfg.Output.SavePanel = o.savePanel
	}
	if o.set["verbose"] {
		cfg.Output.Verbose = o.verbose
	}
}

func main() {
	opts, fs, err := parseOptions(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	if opts.writeConfig {
		if err := config.CreateDefaultConfigFile(opts.configPath); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", opts.configPath)
		return
	}

	// Validate inputs
	if opts.imageFile == "" {
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	opts.apply(cfg)

	params, err := cfg.Params()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if cfg.Output.Verbose {
		fmt.Println("================================")
		fmt.Println("MACENKO H&E STAIN NORMALIZATION")
		fmt.Println("================================")
		fmt.Printf("Io=%g alpha=%g beta=%g\n", params.Io, params.Alpha, params.Beta)
	}

	img, err := imageio.LoadImage(opts.imageFile)
	if err != nil {
		log.Fatalf("Failed to load image: %v", err)
	}

	normalizer := macenko.NewNormalizer(params)
	if cfg.Output.Verbose {
		normalizer.SetProgressCallback(func(completed, total int, message string) {
			if total == 0 {
				fmt.Println(message)
				return
			}
			fmt.Printf("Step %d/%d: %s\n", completed, total, message)
		})
	}

	startTime := time.Now()
	result, err := normalizer.Normalize(img)
	if err != nil {
		log.Fatalf("Normalization failed: %v", err)
	}
	processingTime := time.Since(startTime)

	if err := imageio.SaveImage(result.Normalized, opts.saveFile); err != nil {
		log.Fatalf("Failed to save normalized image: %v", err)
	}

	if result.Hematoxylin != nil {
		if err := imageio.SaveImage(result.Hematoxylin, imageio.SiblingPath(opts.saveFile, "_H")); err != nil {
			log.Printf("Warning: Failed to save hematoxylin image: %v", err)
		}
		if err := imageio.SaveImage(result.Eosin, imageio.SiblingPath(opts.saveFile, "_E")); err != nil {
			log.Printf("Warning: Failed to save eosin image: %v", err)
		}
	}

	viewer := visualization.NewViewer(img, result)
	if cfg.Output.SaveConcentrationMaps {
		mapsDir := filepath.Join(filepath.Dir(opts.saveFile), "concentration_maps")
		if err := viewer.SaveConcentrationMaps(mapsDir); err != nil {
			log.Printf("Warning: Failed to save concentration maps: %v", err)
		}
	}
	if cfg.Output.SavePanel {
		if err := viewer.SavePanel(imageio.SiblingPath(opts.saveFile, "_panel")); err != nil {
			log.Printf("Warning: Failed to save panel: %v", err)
		}
	}

	if cfg.Output.Verbose {
		printSummary(result, opts.saveFile, processingTime)
	}
}

func printSummary(result *macenko.Result, saveFile string, elapsed time.Duration) {
	d := result.Diagnostics
	fmt.Printf("\nNormalization completed in %.3f seconds\n", elapsed.Seconds())
	fmt.Printf("Output saved to: %s\n\n", saveFile)

	fmt.Println("Diagnostics:")
	fmt.Println("============")
	fmt.Printf("Tissue pixels: %d of %d (%.1f%%)\n", d.TissuePixels, d.TotalPixels, d.TissueFraction()*100)
	fmt.Printf("Covariance eigenvalues: %.5f %.5f %.5f\n", d.Eigenvalues[0], d.Eigenvalues[1], d.Eigenvalues[2])
	fmt.Printf("Stain angle range: [%.4f, %.4f] rad\n", d.MinAngle, d.MaxAngle)
	fmt.Printf("Stain matrix condition number: %.3f\n", d.Condition)
	for _, s := range []models.Stain{models.Hematoxylin, models.Eosin} {
		fmt.Printf("%-12s vector=(%.4f, %.4f, %.4f) maxC=%.4f meanC=%.4f\n", s,
			result.StainMatrix.At(0, int(s)), result.StainMatrix.At(1, int(s)), result.StainMatrix.At(2, int(s)),
			d.MaxConcentrations[s], d.MeanConcentrations[s])
	}
}
