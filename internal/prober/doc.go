// Package prober performs single-URL liveness checks against stream endpoints.
// A probe connects, follows a bounded number of redirects by hand, reads a
// capped amount of body within a time budget, and classifies the outcome.
package prober
