package handlers

import (
	"strings"

	"jgfinder/internal/database"
	"jgfinder/internal/events"
	"jgfinder/internal/extensions"
	"jgfinder/internal/finder"
	"jgfinder/internal/gallery"
	"jgfinder/internal/indexer"
	"jgfinder/internal/searchbridge"
	"jgfinder/internal/session"
	"jgfinder/internal/siteroute"
	"jgfinder/internal/startup"
)

// Deps are the services the handlers use.
type Deps struct {
	DB         *database.Database
	Store      *gallery.Store
	Index      *finder.Index
	Extensions *extensions.Registry
	Indexer    *indexer.Adapter
	Events     *events.Dispatcher
	Bridge     *searchbridge.Bridge
	Sessions   *session.Manager
	Routes     *siteroute.Routes
}

type Handlers struct {
	db       *database.Database
	store    *gallery.Store
	index    *finder.Index
	ext      *extensions.Registry
	indexer  *indexer.Adapter
	events   *events.Dispatcher
	bridge   *searchbridge.Bridge
	sessions *session.Manager
	routes   *siteroute.Routes

	siteURL   string
	feedLimit int
}

func New(deps Deps, config *startup.Config) *Handlers {
	return &Handlers{
		db:        deps.DB,
		store:     deps.Store,
		index:     deps.Index,
		ext:       deps.Extensions,
		indexer:   deps.Indexer,
		events:    deps.Events,
		bridge:    deps.Bridge,
		sessions:  deps.Sessions,
		routes:    deps.Routes,
		siteURL:   strings.TrimRight(config.SiteURL, "/"),
		feedLimit: config.FeedLimit,
	}
}
