// Package main is pkginstall, the package installer of the gallery smart
// search plugins.
//
// Usage:
//
//	pkginstall install --manifest pkg_joomfinderplugin.xml
//	pkginstall update --manifest pkg_joomfinderplugin.xml --host-version 4.4.0
//	pkginstall uninstall
//
// Installer messages are printed to stdout as "[type] text"; logs go to
// stderr. Settings can also come from PLUGINS_DIR, DATABASE_DIR and
// HOST_VERSION, or a .env file.
package main
