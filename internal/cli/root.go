package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "worker":
		return runWorker(args[1:])
	case "submit":
		return runSubmit(args[1:])
	case "status":
		return runStatus(args[1:])
	case "queue":
		return runQueue(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "dashboard":
		return runDashboard(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("yt-transcriber: tiered video transcription pipeline")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  yt-transcriber doctor")
	fmt.Println("  yt-transcriber worker")
	fmt.Println("  yt-transcriber submit <url>")
	fmt.Println("  yt-transcriber status <job-id>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  worker     run the transcription worker pool until interrupted")
	fmt.Println("  submit     enqueue a transcription job for a video URL")
	fmt.Println("  status     show one job's state, progress, and result or failure")
	fmt.Println("  queue      show waiting/active/completed/failed counts")
	fmt.Println("  doctor     run dependency, cookie, queue, and storage preflight checks")
	fmt.Println("  dashboard  live queue view (interactive terminal)")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Configuration comes from config.yaml, .env, and YTT_* env vars")
	fmt.Println("  - submit --force-fallback skips native captions and goes straight")
	fmt.Println("    to the local speech model")
}
