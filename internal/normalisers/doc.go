// Package normalisers turns source files into documents of numbered
// pages and lines. Each sub-package handles one format; the Registry
// picks a parser by file extension.
package normalisers
