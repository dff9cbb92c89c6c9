// Package html extracts readable text from HTML documents. Scripts, styles
// and markup are dropped; block elements become paragraph breaks.
package html
