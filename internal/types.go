package internal

import (
	"sjsage522/eventworker/internal/geocode"
	"sjsage522/eventworker/internal/store"
	"sjsage522/eventworker/services/cache"
	"sjsage522/eventworker/services/publisher"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     store.Store
	Geocoder  *geocode.Geocoder
}
