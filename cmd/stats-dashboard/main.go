package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// preferenceFlags collects repeated -pref name=value flags
type preferenceFlags []string

func (p *preferenceFlags) String() string { return strings.Join(*p, ",") }

func (p *preferenceFlags) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func main() {
	var prefs preferenceFlags
	flag.Var(&prefs, "pref", "save a user preference as name=value before watching (repeatable)")
	flag.Parse()

	updates := Preferences{}
	for _, p := range prefs {
		name, value, err := parsePreference(p)
		if err != nil {
			fmt.Printf("%v\n", err)
			os.Exit(2)
		}
		updates[name] = value
	}

	root, err := NewCompositionRoot()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		root.Console.Summary(root.Metrics)
		if err := root.Cleanup(); err != nil {
			root.Logger.Error("Failed to cleanup resources", zap.Error(err))
		}
	}()

	if err := root.Start(); err != nil {
		root.Logger.Error("Failed to start dashboard", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(updates) > 0 {
		if err := root.Preferences.Set(ctx, updates); err != nil {
			root.Console.Warning(fmt.Sprintf("Preferences were not saved: %v", err))
		}
	}

	// SIGUSR1 performs a pull-to-refresh
	refreshSignal := make(chan os.Signal, 1)
	signal.Notify(refreshSignal, syscall.SIGUSR1)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-refreshSignal:
			go func() {
				if err := root.PullToRefresh(ctx); err != nil {
					root.Console.Warning(fmt.Sprintf("Refresh failed: %v", err))
				}
			}()
		case <-quit:
			root.Logger.Info("Shutting down dashboard...")
			return
		}
	}
}
