package interfaces

import "go-stats-cache/internal/models"

// NetworkStatus exposes connectivity to consumers
type NetworkStatus interface {
	State() models.NetworkState
	// Subscribe registers fn for transitions and returns a function removing it
	Subscribe(fn func(models.NetworkState)) (unsubscribe func())
}
