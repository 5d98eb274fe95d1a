package cmd

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/sysdiglabs/secure-inline-scan/pkg/backend"
	"github.com/sysdiglabs/secure-inline-scan/pkg/docker"
	"github.com/sysdiglabs/secure-inline-scan/pkg/etc"
	"github.com/sysdiglabs/secure-inline-scan/pkg/ext"
	"github.com/sysdiglabs/secure-inline-scan/pkg/scan"
	"github.com/sysdiglabs/secure-inline-scan/pkg/session"
)

// ErrVerdictNotPass marks a completed scan whose verdict was anything other
// than pass. The process exits 1 in that case, same as for hard failures.
var ErrVerdictNotPass = xerrors.New("image did not pass the scan policy check")

const cleanupTimeout = 5 * time.Minute

type analyzeOptions struct {
	baseURL        string
	token          string
	annotations    string
	dockerfile     string
	imageID        string
	manifest       string
	timeoutSeconds int
	postRetries    int
	getRetries     int
	pull           bool
	verbose        bool
	insecureTLS    bool
}

func NewAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	analyzeCmd := &cobra.Command{
		Use:   "analyze IMAGE",
		Short: "Analyze a locally built image and poll the scan verdict",
		Long: "Exports the given local image to an archive, runs the helper analysis container " +
			"against it, uploads the produced analysis archive to the backend and polls until " +
			"a pass or fail verdict is returned.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), opts, args[0])
		},
	}

	analyzeCmd.Flags().StringVarP(&opts.baseURL, "sysdig-url", "s", "https://secure.sysdig.com", "Backend base URL")
	analyzeCmd.Flags().StringVarP(&opts.token, "sysdig-token", "k", "", "Backend API token")
	analyzeCmd.Flags().StringVarP(&opts.annotations, "annotations", "a", "", "Comma separated key=value annotations")
	analyzeCmd.Flags().StringVarP(&opts.dockerfile, "dockerfile", "f", "", "Path to the Dockerfile the image was built from")
	analyzeCmd.Flags().StringVarP(&opts.imageID, "image-id", "i", "", "Override the image ID reported to the backend")
	analyzeCmd.Flags().StringVarP(&opts.manifest, "manifest", "m", "", "Path to an image manifest file")
	analyzeCmd.Flags().IntVarP(&opts.timeoutSeconds, "timeout", "o", 300, "Analysis timeout in seconds")
	analyzeCmd.Flags().IntVar(&opts.postRetries, "post-retries", etc.DefaultPostRetries, "Upload attempts before giving up")
	analyzeCmd.Flags().IntVar(&opts.getRetries, "get-retries", etc.DefaultGetRetries, "Verdict poll attempts before giving up")
	analyzeCmd.Flags().BoolVarP(&opts.pull, "pull", "P", false, "Attempt to pull the image before scanning")
	analyzeCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	analyzeCmd.Flags().BoolVar(&opts.insecureTLS, "insecure", false, "Skip TLS verification against the backend")

	return analyzeCmd
}

func runAnalyze(ctx context.Context, opts analyzeOptions, image string) error {
	defaults, err := etc.GetDefaults()
	if err != nil {
		return xerrors.Errorf("reading environment defaults: %w", err)
	}

	annotations, err := etc.ParseAnnotations(opts.annotations)
	if err != nil {
		return err
	}

	req := etc.ScanRequest{
		BaseURL:        opts.baseURL,
		Token:          opts.token,
		Image:          image,
		DockerfilePath: opts.dockerfile,
		ManifestPath:   opts.manifest,
		ImageID:        opts.imageID,
		Annotations:    annotations,
		TimeoutSeconds: opts.timeoutSeconds,
		PostRetries:    opts.postRetries,
		GetRetries:     opts.getRetries,
		Verbose:        opts.verbose,
		PullBeforeScan: opts.pull,
		InsecureTLS:    opts.insecureTLS,
		StagingDir:     defaults.StagingDir,
		HelperImage:    defaults.HelperImage,
	}

	if req.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	if err = etc.Check(req); err != nil {
		return err
	}

	client := backend.NewClient(backend.Config{
		BaseURL:     req.BaseURL,
		Token:       req.Token,
		PostRetries: req.PostRetries,
		GetRetries:  req.GetRetries,
		InsecureTLS: req.InsecureTLS,
		StagingDir:  req.StagingDir,
	}, ext.DefaultAmbassador)

	if err = client.CheckConnectivity(ctx); err != nil {
		return err
	}

	runtime, err := docker.NewRuntime()
	if err != nil {
		return err
	}

	cleaner := scan.NewCleaner(runtime, ext.DefaultAmbassador, req.StagingDir)
	controller := scan.NewController(
		runtime,
		client,
		session.NewManager(runtime, client, ext.DefaultAmbassador),
		cleaner,
		ext.DefaultAmbassador,
	)

	verdict, err := runScan(ctx, controller, cleaner, req)
	if err != nil {
		return err
	}
	if !verdict.Passed() {
		return ErrVerdictNotPass
	}

	log.WithField("image", image).Info("Scan passed")
	return nil
}

// runScan runs the pipeline and guarantees teardown on every exit path.
// Cleanup gets its own context so that a run context canceled by a signal
// cannot skip it.
func runScan(ctx context.Context, controller scan.Controller, cleaner *scan.Cleaner, req etc.ScanRequest) (verdict backend.ScanVerdict, err error) {
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if cleanupErr := cleaner.Cleanup(cleanupCtx); cleanupErr != nil {
			log.WithError(cleanupErr).Error("Cleanup failed")
			if err == nil {
				err = cleanupErr
			}
		}
	}()

	return controller.Scan(ctx, req)
}
