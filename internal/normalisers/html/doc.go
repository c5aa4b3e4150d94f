// Package html provides a parser for HTML filings and press releases.
// It strips markup, keeps table rows on single lines and splits pages at
// CSS page breaks and horizontal rules.
package html
