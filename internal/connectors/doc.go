// Package connectors provides the sources filings are read from.
// The filesystem connector walks a local corpus laid out as one
// directory per ticker and watches it for changes.
package connectors
