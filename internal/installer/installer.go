// Package installer installs, updates and removes the package of the three
// smart search plugins.
//
// The lifecycle follows the host's package installer: Preflight runs
// before any change, Install or Update copy the plugin manifests and
// register the plugins, Postflight runs last. Diagnostics are queued on a
// messages.Queue for the caller to print.
package installer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jgfinder/internal/extensions"
	"jgfinder/internal/logging"
	"jgfinder/internal/messages"
)

// Installer messages.
const (
	MsgPluginMissing   = "At least one plugin not available!"
	MsgVersionMismatch = "Plugins dont have the same version number!"

	MsgInstalled     = "Smart search plugins for the gallery installed (version %s)"
	MsgUpdated       = "Smart search plugins for the gallery updated to %s"
	MsgHostBugTitle  = "Known host issue"
	MsgHostBug       = "Host version %s breaks the indexing of gallery images in smart search. Update the host before using the plugins."
	MsgPreviewTitle  = "Pre-release version"
	MsgPreview       = "This is a pre-release version. Do not use it on production sites."
	BuggyHostVersion = "3.9.27"
)

// Action types passed to Preflight and Postflight.
const (
	ActionInstall = "install"
	ActionUpdate  = "update"
)

var (
	// ErrPluginMissing is returned by Preflight when an installed plugin
	// manifest cannot be found.
	ErrPluginMissing = errors.New("installer: plugin not available")
	// ErrVersionMismatch is returned by Preflight when the installed
	// plugins have different versions.
	ErrVersionMismatch = errors.New("installer: plugin versions differ")
)

// Plugin is one plugin of the package.
type Plugin struct {
	Name string
	Key  extensions.Key
}

// Plugins are the plugins shipped in the package.
var Plugins = []Plugin{
	{Name: "plg_joomgallery_finder", Key: extensions.GalleryPlugin},
	{Name: "plg_finder_joomgallery", Key: extensions.FinderPlugin},
	{Name: "plg_system_jgfinder", Key: extensions.SystemPlugin},
}

// Registry is the part of the extensions registry the installer uses.
type Registry interface {
	Find(ctx context.Context, k extensions.Key) (*extensions.Extension, error)
	Register(ctx context.Context, e *extensions.Extension) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
}

// Config configures an Installer.
type Config struct {
	// PluginsDir is the directory plugin manifests are installed in.
	PluginsDir string
	// HostVersion is the version of the host application.
	HostVersion string
}

// Installer runs the package lifecycle for one package manifest.
type Installer struct {
	cfg      Config
	pkg      *Manifest
	registry Registry
	queue    *messages.Queue

	actCode string
	newCode string
}

// New creates an Installer for the package described by pkg.
func New(cfg Config, pkg *Manifest, registry Registry, queue *messages.Queue) *Installer {
	if queue == nil {
		queue = messages.NewQueue()
	}
	return &Installer{cfg: cfg, pkg: pkg, registry: registry, queue: queue, newCode: pkg.Version}
}

// Messages returns the queued installer messages.
func (in *Installer) Messages() []messages.Message {
	return in.queue.Messages()
}

// InstalledVersion returns the plugin version found by an update
// preflight, empty before.
func (in *Installer) InstalledVersion() string {
	return in.actCode
}

// Preflight checks the installed plugins before an update. Every plugin
// manifest must exist and all must carry the same version. Problems are
// queued as errors and returned; the caller decides whether to continue.
func (in *Installer) Preflight(ctx context.Context, action string) error {
	if action != ActionUpdate {
		return nil
	}

	versions := make([]string, 0, len(Plugins))
	for _, p := range Plugins {
		path := ManifestPath(in.cfg.PluginsDir, p.Key)
		ok, err := exists(path)
		if err != nil {
			return err
		}
		if !ok {
			logging.Warn("plugin manifest %s not found", path)
			in.queue.Error(MsgPluginMissing)
			return fmt.Errorf("%w: %s", ErrPluginMissing, p.Name)
		}
		m, err := ReadManifest(path)
		if err != nil {
			return err
		}
		versions = append(versions, m.Version)
	}

	in.actCode = versions[0]
	for _, v := range versions[1:] {
		if v != versions[0] {
			in.queue.Error(MsgVersionMismatch)
			return fmt.Errorf("%w: %s", ErrVersionMismatch, strings.Join(versions, ", "))
		}
	}
	return nil
}

// Install installs the plugins and queues the install messages.
func (in *Installer) Install(ctx context.Context) error {
	if err := in.deploy(ctx); err != nil {
		return err
	}
	in.queue.Info(fmt.Sprintf(MsgInstalled, in.newCode))
	in.notices(ActionInstall)
	return nil
}

// Update replaces the installed plugins and queues the update messages.
func (in *Installer) Update(ctx context.Context) error {
	if err := in.deploy(ctx); err != nil {
		return err
	}
	in.queue.Info(fmt.Sprintf(MsgUpdated, in.newCode))
	in.notices(ActionUpdate)
	return nil
}

// Uninstall leaves the plugins in place; the host removes them.
func (in *Installer) Uninstall(ctx context.Context) error {
	return nil
}

// Postflight enables every installed plugin of the package when the
// package manifest asks for it.
func (in *Installer) Postflight(ctx context.Context, action string) error {
	if !in.pkg.AutoActivate {
		return nil
	}
	for _, p := range Plugins {
		if err := in.enable(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (in *Installer) enable(ctx context.Context, p Plugin) error {
	ext, err := in.registry.Find(ctx, p.Key)
	if errors.Is(err, extensions.ErrNotFound) {
		logging.Debug("plugin %s not installed, not enabling it", p.Name)
		return nil
	}
	if err != nil {
		return err
	}
	if ext.Enabled {
		return nil
	}
	if err := in.registry.SetEnabled(ctx, ext.ID, true); err != nil {
		return err
	}
	logging.Info("Enabled plugin %s", p.Name)
	return nil
}

// deploy writes the plugin manifests and registers the plugins. New
// plugins are registered disabled.
func (in *Installer) deploy(ctx context.Context) error {
	for _, p := range Plugins {
		m := &Manifest{
			Type:    extensions.TypePlugin,
			Group:   p.Key.Folder,
			Method:  "upgrade",
			Name:    p.Name,
			Version: in.newCode,
		}
		if err := WriteManifest(ManifestPath(in.cfg.PluginsDir, p.Key), m); err != nil {
			return fmt.Errorf("install %s: %w", p.Name, err)
		}

		ext := &extensions.Extension{
			Name:    p.Name,
			Type:    p.Key.Type,
			Element: p.Key.Element,
			Folder:  p.Key.Folder,
			Version: in.newCode,
		}
		if err := in.registry.Register(ctx, ext); err != nil {
			return fmt.Errorf("register %s: %w", p.Name, err)
		}
	}
	return nil
}

// notices queues the warnings shown after an install or update.
func (in *Installer) notices(action string) {
	if in.cfg.HostVersion == BuggyHostVersion {
		in.queue.Warning(MsgHostBugTitle + ": " + fmt.Sprintf(MsgHostBug, in.cfg.HostVersion))
	}
	if (action == ActionInstall || action == ActionUpdate) && isPreRelease(in.newCode) {
		in.queue.Warning(MsgPreviewTitle + ": " + MsgPreview)
	}
}

// isPreRelease reports whether the major version is 0.
func isPreRelease(version string) bool {
	major, _, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(version), "v"), ".")
	return major == "0"
}
