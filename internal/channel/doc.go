// Package channel holds the channel, probe outcome, and run progress model
// shared by the prober, the job controller, and the collaborators that store,
// report, and deliver run results.
package channel
