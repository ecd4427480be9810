package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/mattmezza/alertai/internal/alerter"
	"github.com/mattmezza/alertai/internal/camera"
	"github.com/mattmezza/alertai/internal/collector"
	"github.com/mattmezza/alertai/internal/config"
	"github.com/mattmezza/alertai/internal/detector"
	"github.com/mattmezza/alertai/internal/events"
	"github.com/mattmezza/alertai/internal/history"
	"github.com/mattmezza/alertai/internal/metrics"
	"github.com/mattmezza/alertai/internal/monitor"
	"github.com/mattmezza/alertai/internal/notifier"
)

const (
	defaultConfigFile = "config.yaml"
	windowTitle       = "AlertAI - Drowsiness Detection"
	reloadPollPeriod  = 2 * time.Second
)

func init() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
}

// options are the command line flags. set records which ones were given
// explicitly, since only those override the config file.
type options struct {
	configPath    string
	model         string
	labels        string
	camera        int
	confidence    float64
	detectionTime float64
	cooldown      float64
	noPreview     bool
	metricsAddr   string
	eventsAddr    string

	set  map[string]bool
	args []string
}

func parseFlags(name string, args []string) (*options, error) {
	opts := &options{set: make(map[string]bool)}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", defaultConfigFile, "Path to the configuration file.")
	fs.StringVar(&opts.model, "model", "best.onnx", "Path to the YOLOv8 ONNX model.")
	fs.StringVar(&opts.labels, "labels", "", "Optional YAML file with the model class names.")
	fs.IntVar(&opts.camera, "camera", 0, "Camera index.")
	fs.Float64Var(&opts.confidence, "conf", 0.5, "Detection confidence threshold.")
	fs.Float64Var(&opts.detectionTime, "detection-time", 1.5, "Required continuous detection time in seconds.")
	fs.Float64Var(&opts.cooldown, "cooldown", 5, "Cooldown between alerts of the same category in seconds.")
	fs.BoolVar(&opts.noPreview, "no-preview", false, "Do not open the preview window.")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090.")
	fs.StringVar(&opts.eventsAddr, "events-addr", "", "Serve the alert websocket and status endpoint on this address.")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	opts.args = fs.Args()
	return opts, nil
}

// loadConfig reads the config file and applies explicit flags on top. A missing
// file is only an error when -config was given.
func loadConfig(opts *options) (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(opts.configPath); errors.Is(err, os.ErrNotExist) && !opts.set["config"] {
		log.Printf("No %s found, using defaults.", opts.configPath)
		cfg = config.Default()
	} else {
		cfg, err = config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
	}

	applyOverrides(cfg, opts)
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid command line settings: %w", err)
	}
	return cfg, nil
}

func applyOverrides(cfg *config.Config, opts *options) {
	if opts.set["model"] {
		cfg.ModelPath = opts.model
	}
	if opts.set["labels"] {
		cfg.LabelsPath = opts.labels
	}
	if opts.set["camera"] {
		cfg.Camera = opts.camera
	}
	if opts.set["conf"] {
		cfg.Confidence = opts.confidence
	}
	if opts.set["detection-time"] {
		cfg.SetDetectionSeconds(opts.detectionTime)
	}
	if opts.set["cooldown"] {
		cfg.SetCooldownSeconds(opts.cooldown)
	}
	if opts.set["no-preview"] {
		cfg.Headless = opts.noPreview
	}
	if opts.set["metrics-addr"] {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if opts.set["events-addr"] {
		cfg.EventsAddr = opts.eventsAddr
	}
}

func printModelInfo(w io.Writer, labels []string) {
	fmt.Fprintln(w, "\n=== AlertAI Model Information ===")
	fmt.Fprintln(w, "Loaded classes:")
	for id, name := range labels {
		fmt.Fprintf(w, "Class ID: %d, Class Name: %s\n", id, name)
	}
	fmt.Fprintln(w, "=================================")
	fmt.Fprintln(w)
}

// unknownCategories returns the categories that no model label can match.
func unknownCategories(categories, labels []string) []string {
	m := collector.NewCategoryMatcher(categories)
	known := make(map[string]bool)
	for _, l := range labels {
		if c, ok := m.Match(l); ok {
			known[c] = true
		}
	}
	var missing []string
	for _, c := range m.Categories() {
		if !known[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

func testNotification(ctx context.Context, cfg *config.Config, channelName string, speakers notifier.SpeakerFactory) error {
	log.Println("Testing notification channels...")

	if channelName != "" {
		found := false
		var availableChannels []string
		for _, channel := range cfg.NotificationChannels {
			availableChannels = append(availableChannels, channel.Name)
			if channel.Name == channelName {
				found = true
			}
		}
		if !found {
			if len(availableChannels) == 0 {
				return fmt.Errorf("channel '%s' not found and no notification channels configured", channelName)
			}
			return fmt.Errorf("channel '%s' not found in configuration. Available channels: %s",
				channelName, strings.Join(availableChannels, ", "))
		}
	}

	configuredNotifiers, err := notifier.InitializeNotifiers(ctx, cfg.NotificationChannels, speakers)
	if err != nil {
		return fmt.Errorf("failed to initialize notifiers: %w", err)
	}
	if len(configuredNotifiers) == 0 {
		return fmt.Errorf("no notification channels were successfully initialized")
	}

	now := time.Now()
	testData := notifier.NotificationData{
		EventID:             "test",
		Category:            "test alert",
		Confidence:          0.99,
		MeanConfidence:      0.9,
		Frames:              45,
		ActiveFor:           cfg.DetectionTime,
		Hostname:            cfg.EffectiveHostname,
		Time:                now,
		FormattedConfidence: notifier.FormatConfidence(0.99),
		FormattedActiveFor:  notifier.FormatActiveFor(cfg.DetectionTime),
	}
	templates := notifier.NotificationTemplates{AlertTemplate: cfg.Templates.Alert}

	if channelName != "" {
		notifierInstance, exists := configuredNotifiers[channelName]
		if !exists {
			return fmt.Errorf("channel '%s' was not successfully initialized", channelName)
		}
		log.Printf("Testing notification channel: %s", channelName)
		if err := notifierInstance.Send(testData, templates); err != nil {
			return fmt.Errorf("failed to send test notification to channel '%s': %w", channelName, err)
		}
		log.Printf("Test notification sent successfully to channel: %s", channelName)
		return nil
	}

	names := make([]string, 0, len(configuredNotifiers))
	for name := range configuredNotifiers {
		names = append(names, name)
	}
	sort.Strings(names)

	log.Printf("Testing all %d configured notification channels...", len(names))
	successCount := 0
	for _, name := range names {
		log.Printf("Testing channel: %s", name)
		if err := configuredNotifiers[name].Send(testData, templates); err != nil {
			log.Printf("Failed to send test notification to channel '%s': %v", name, err)
			continue
		}
		log.Printf("Test notification sent successfully to channel: %s", name)
		successCount++
	}
	log.Printf("Test completed: %d/%d channels successful", successCount, len(names))
	if successCount == 0 {
		return fmt.Errorf("all notification channels failed")
	}
	return nil
}

// reloader re-reads the config file when it changes and applies the settings
// that can change while running.
type reloader struct {
	opts      *options
	alert     *alerter.Alerter
	collector *collector.FrameCollector
}

func (r *reloader) reload() {
	cfg, err := loadConfig(r.opts)
	if err != nil {
		log.Printf("Config reload failed, keeping current settings: %v", err)
		return
	}
	if err := r.alert.Configure(cfg.DetectionTime, cfg.Cooldown); err != nil {
		log.Printf("Config reload failed, keeping current settings: %v", err)
		return
	}
	r.collector.SetMinConfidence(cfg.Confidence)
	log.Printf("Config reloaded: detection time %s, cooldown %s, confidence %.2f",
		cfg.DetectionTime, cfg.Cooldown, cfg.Confidence)
}

func run(ctx context.Context, opts *options, cfg *config.Config) error {
	var labels []string
	if cfg.LabelsPath != "" {
		var err error
		if labels, err = detector.LoadLabels(cfg.LabelsPath); err != nil {
			return err
		}
	}

	det, err := detector.NewONNXDetector(detector.ONNXConfig{
		ModelPath:      cfg.ModelPath,
		Labels:         labels,
		RuntimeLibrary: cfg.RuntimeLibrary,
		InputSize:      cfg.InputSize,
		IoUThreshold:   cfg.IoUThreshold,
	})
	if err != nil {
		return fmt.Errorf("error loading model %s: %w", cfg.ModelPath, err)
	}
	defer det.Close()

	printModelInfo(os.Stdout, det.Labels())
	log.Printf("Model input size: %dx%d", det.InputSize(), det.InputSize())
	log.Printf("Monitoring for: %s", strings.Join(cfg.Categories, ", "))
	if missing := unknownCategories(cfg.Categories, det.Labels()); len(missing) > 0 {
		log.Printf("Warning: the model has no class for: %s", strings.Join(missing, ", "))
	}

	log.Printf("Opening camera %d...", cfg.Camera)
	cam, err := camera.Open(cfg.Camera)
	if err != nil {
		return err
	}
	fps := cam.FPS()
	log.Printf("Camera opened successfully. Estimated FPS: %.1f", fps)

	configuredNotifiers, err := notifier.InitializeNotifiers(ctx, cfg.NotificationChannels, nil)
	if err != nil {
		cam.Close()
		return fmt.Errorf("failed to initialize notifiers: %w", err)
	}
	if len(configuredNotifiers) == 0 {
		log.Println("Warning: no notification channels were successfully initialized, alerts will only be logged.")
	} else {
		log.Printf("%d notification channel(s) initialized.", len(configuredNotifiers))
	}

	debouncer, err := alerter.NewDebouncer(cfg.DetectionTime, cfg.Cooldown)
	if err != nil {
		cam.Close()
		return err
	}
	hist := history.NewDetectionHistoryBuffer(history.CapacityFor(cfg.DetectionTime+cfg.Cooldown, fps))
	mt := metrics.New()
	hub := events.NewHub(debouncer.Snapshot)

	alert, err := alerter.NewAlerter(cfg, debouncer, hist, configuredNotifiers,
		alerter.WithSinks(mt, hub),
		alerter.WithDeliveryObserver(mt.ObserveDelivery))
	if err != nil {
		cam.Close()
		return err
	}

	frames := collector.NewFrameCollector(cam, det, collector.NewCategoryMatcher(cfg.Categories), cfg.Confidence)
	defer frames.Close()

	if cfg.MetricsAddr != "" {
		go func() {
			log.Printf("Serving metrics on %s/metrics", cfg.MetricsAddr)
			if err := mt.StartServer(ctx, cfg.MetricsAddr); err != nil {
				log.Printf("Metrics server stopped: %v", err)
			}
		}()
	}
	if cfg.EventsAddr != "" {
		go func() {
			log.Printf("Serving alert events on %s/ws and %s/status", cfg.EventsAddr, cfg.EventsAddr)
			if err := hub.StartServer(ctx, cfg.EventsAddr); err != nil {
				log.Printf("Events server stopped: %v", err)
			}
		}()
	}
	if _, err := os.Stat(opts.configPath); err == nil {
		r := &reloader{opts: opts, alert: alert, collector: frames}
		go config.Watch(ctx, opts.configPath, reloadPollPeriod, r.reload)
	}

	monitorOpts := []monitor.Option{monitor.WithMetrics(mt)}
	if !cfg.Headless {
		preview := camera.NewPreview(windowTitle)
		defer preview.Close()
		monitorOpts = append(monitorOpts, monitor.WithPreview(preview))
		log.Println("Press 'q' to quit")
	}

	return monitor.New(frames, alert, monitorOpts...).Run(ctx)
}

func main() {
	opts, err := parseFlags(os.Args[0], os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(opts.args) > 0 && opts.args[0] == "test-notification" {
		var channelName string
		if len(opts.args) > 1 {
			channelName = opts.args[1]
		}
		if err := testNotification(ctx, cfg, channelName, nil); err != nil {
			stop()
			log.Fatalf("ERROR: %v", err)
		}
		return
	}

	log.Printf("Starting AlertAI (detection time %s, cooldown %s, confidence %.2f)...",
		cfg.DetectionTime, cfg.Cooldown, cfg.Confidence)
	if err := run(ctx, opts, cfg); err != nil {
		log.Printf("ERROR: %v", err)
		stop()
		os.Exit(1)
	}
	log.Println("AlertAI terminated")
}
