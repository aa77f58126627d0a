package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"go-stats-cache/internal/cache"
	"go-stats-cache/internal/client"
	"go-stats-cache/internal/config"
	"go-stats-cache/internal/interfaces"
	"go-stats-cache/internal/metrics"
	"go-stats-cache/internal/models"
	"go-stats-cache/internal/network"
	"go-stats-cache/internal/offline"
	"go-stats-cache/internal/optimistic"
	"go-stats-cache/internal/policy"
	"go-stats-cache/internal/refresh"
	"go-stats-cache/internal/revalidation"
	"go-stats-cache/internal/upstream"
)

// watch is one subscribed data set
type watch struct {
	name   string
	source *client.DataSource[json.RawMessage]
	params map[string]any
	sub    client.Subscription
}

// CompositionRoot holds every dependency of the dashboard and owns their cleanup
type CompositionRoot struct {
	Config   *config.Config
	Env      config.EnvOverrides
	Logger   *zap.Logger
	Clock    clock.Clock
	Console  *Console
	Policies *policy.Registry
	KeyCodec interfaces.KeyCodec

	Offline *offline.Layer
	Monitor *network.Monitor
	Prober  *network.Prober

	Metrics     *metrics.Collector
	Store       *client.Store
	Revalidator *revalidation.Client
	Coordinator *optimistic.Coordinator
	Refresh     *refresh.Controller
	Preferences *PreferencesWriter

	httpClient    *http.Client
	watches       []*watch
	unsubscribeUI func()
}

// NewCompositionRoot creates and wires all dashboard dependencies
func NewCompositionRoot() (*CompositionRoot, error) {
	root := &CompositionRoot{
		Clock:   clock.New(),
		Console: NewConsole(os.Stdout),
	}

	if err := root.initLogger(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := root.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	registry, err := policy.LoadRegistry(root.Env.PoliciesFile, root.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load cache policies: %w", err)
	}
	root.Policies = registry
	root.KeyCodec = cache.NewKeyCodec()

	if err := root.initOffline(); err != nil {
		return nil, fmt.Errorf("failed to initialize offline store: %w", err)
	}

	root.initNetwork()

	if err := root.initStore(); err != nil {
		return nil, fmt.Errorf("failed to initialize client cache: %w", err)
	}

	if err := root.initMutations(); err != nil {
		return nil, fmt.Errorf("failed to initialize mutations: %w", err)
	}

	root.initRefresh()
	return root, nil
}

// initLogger initializes the application logger
func (r *CompositionRoot) initLogger() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	r.Logger = logger
	return nil
}

// loadConfig reads environment overrides, then the YAML configuration they point to
func (r *CompositionRoot) loadConfig() error {
	env, err := config.ParseEnv()
	if err != nil {
		return err
	}
	r.Env = env

	cfg, err := config.LoadConfig(env.ConfigFile, r.Logger)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(env)
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.Config = cfg
	return nil
}

// initOffline opens the offline store, drops older generations and builds the HTTP
// client that serves shell resources from it
func (r *CompositionRoot) initOffline() error {
	base := http.DefaultTransport
	if !r.Config.Offline.Enabled {
		r.httpClient = &http.Client{Transport: base}
		r.Logger.Info("Offline store disabled")
		return nil
	}

	layer, err := offline.Open(r.Config.Offline.DBPath, r.Config.Offline.Generation, r.Clock, r.Logger)
	if err != nil {
		return err
	}
	r.Offline = layer

	ctx, cancel := context.WithTimeout(context.Background(), r.Config.Client.FetchTimeout)
	defer cancel()
	if _, err := layer.EvictStale(ctx); err != nil {
		r.Logger.Warn("Failed to evict stale offline generations", zap.Error(err))
	}

	manifest := absoluteManifest(r.Config.Client.BaseURL, r.Config.Offline.Manifest)
	if err := layer.Precache(ctx, manifest, networkFetch(&http.Client{Transport: base})); err != nil {
		r.Console.Warning(fmt.Sprintf("Some shell resources could not be precached: %v", err))
	}

	r.httpClient = &http.Client{Transport: offline.NewTransport(layer, base, offline.ManifestClassifier(manifest))}
	return nil
}

// initNetwork starts connectivity probing and the banner
func (r *CompositionRoot) initNetwork() {
	r.Monitor = network.NewMonitor(true, r.Clock, r.Logger)
	r.unsubscribeUI = r.Monitor.Subscribe(r.Console.Network)

	probeClient := &http.Client{Timeout: r.Config.Network.ProbeTimeout}
	r.Prober = network.NewProber(r.Config.GetProbeURL(), r.Config.Network.ProbeInterval, r.Config.Network.ProbeTimeout,
		probeClient, r.Monitor, r.Clock, r.Logger)
}

// initStore builds the client cache and subscribes every configured data set
func (r *CompositionRoot) initStore() error {
	r.Metrics = metrics.NewCollector(r.Clock)

	fetcher := upstream.NewClient(r.Config.Client.BaseURL, r.httpClient, r.KeyCodec, r.Policies, r.Logger)

	options := []client.Option{
		client.WithNetworkStatus(r.Monitor),
		client.WithMetrics(r.Metrics),
		client.WithClock(r.Clock),
	}
	if r.Offline != nil {
		options = append(options, client.WithOfflineStore(r.Offline))
	}

	store, err := client.NewStore(fetcher, client.Options{
		FetchTimeout: r.Config.Client.FetchTimeout,
		MaxEntries:   r.Config.Client.MaxEntries,
	}, r.Logger, options...)
	if err != nil {
		return err
	}
	r.Store = store

	for _, w := range r.Config.Client.Watch {
		category, err := r.Policies.CategoryFor(w.Endpoint)
		if err != nil {
			return fmt.Errorf("watch %s: %w", w.Endpoint, err)
		}
		source, err := client.MakeDataSource[json.RawMessage](store, r.Policies, r.KeyCodec, category, w.Endpoint, nil)
		if err != nil {
			return fmt.Errorf("watch %s: %w", w.Endpoint, err)
		}
		r.watches = append(r.watches, &watch{name: w.Endpoint, source: source, params: w.Params})
	}
	return nil
}

// initMutations wires optimistic preference updates and their propagation
func (r *CompositionRoot) initMutations() error {
	r.Revalidator = revalidation.NewClient(r.Config.Client.BaseURL, r.httpClient, r.Store, r.Logger)
	r.Coordinator = optimistic.NewCoordinator(r.Store, r.Revalidator, r.Logger)

	category, err := r.Policies.CategoryFor(preferencesEndpoint)
	if err != nil {
		return err
	}
	source, err := client.MakeDataSource[Preferences](r.Store, r.Policies, r.KeyCodec, category, preferencesEndpoint, nil)
	if err != nil {
		return err
	}
	source.WithMutator(r.Coordinator)

	r.Preferences = NewPreferencesWriter(source, r.Config.Upstream.BaseURL, r.httpClient)
	return nil
}

// initRefresh builds the pull-to-refresh controller over the configured categories
func (r *CompositionRoot) initRefresh() {
	opts := refresh.Options{
		MaxDistance:     r.Config.Refresh.MaxDistance,
		TriggerFraction: r.Config.Refresh.TriggerFraction,
		Resistance:      r.Config.Refresh.Resistance,
		Throttle:        r.Config.Refresh.Throttle,
		MinVisible:      r.Config.Refresh.MinVisible,
	}
	r.Refresh = refresh.NewController(opts, refresh.InvalidateCategories(r.Store, r.Policies, r.Config.Refresh.Categories), r.Clock, r.Logger)
	r.Refresh.Subscribe(r.Console.Refresh)
}

// Start begins probing and subscribes the watched data sets
func (r *CompositionRoot) Start() error {
	r.Prober.Start()

	for _, w := range r.watches {
		name := w.name
		sub, err := w.source.Subscribe(w.params, func(_ json.RawMessage, e models.Entry) {
			r.Console.Entry(name, e)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", w.name, err)
		}
		w.sub = sub
	}
	return nil
}

// PullToRefresh runs one complete pull gesture
func (r *CompositionRoot) PullToRefresh(ctx context.Context) error {
	r.Refresh.DragStart(0)
	r.Refresh.DragMove(r.Config.Refresh.MaxDistance)
	return r.Refresh.Release(ctx)
}

// Cleanup performs cleanup of all resources and returns the first failure
func (r *CompositionRoot) Cleanup() error {
	var errors []error

	for _, w := range r.watches {
		w.source.Unsubscribe(w.sub)
	}
	if r.Prober != nil {
		r.Prober.Stop()
	}
	if r.unsubscribeUI != nil {
		r.unsubscribeUI()
	}

	if r.Store != nil {
		if err := r.Store.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close client cache: %w", err))
		}
	}

	if r.Offline != nil {
		if err := r.Offline.Close(); err != nil {
			errors = append(errors, fmt.Errorf("failed to close offline store: %w", err))
		}
	}

	if r.Logger != nil {
		if err := r.Logger.Sync(); err != nil {
			errors = append(errors, fmt.Errorf("failed to sync logger: %w", err))
		}
	}

	if len(errors) > 0 {
		return errors[0]
	}
	return nil
}
