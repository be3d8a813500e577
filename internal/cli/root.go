package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "convert":
		return runConvert(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "probe":
		return runProbe(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("media-normalizer: batch video normalizer with live progress")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  media-normalizer doctor")
	fmt.Println("  media-normalizer convert --input input --output output")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  convert   convert every source video under --input to H.264/AAC MP4 under --output")
	fmt.Println("  doctor    run dependency and filesystem preflight checks")
	fmt.Println("  probe     print the probed duration of one or more files")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Existing outputs are skipped, so an interrupted batch can simply be rerun")
	fmt.Println("  - Every convert flag can also be set as MEDIANORM_<FLAG>, e.g. MEDIANORM_CRF=23")
	fmt.Println("  - Use --json on commands for machine-readable output")
}
