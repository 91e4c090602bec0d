package metrics

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/uber-go/tally"
)

// The default backend prints every reported metric to stderr, keeping a
// plain CLI download run observable without any statsd infrastructure.
func newDefaultScope(Config) (tally.Scope, io.Closer, error) {
	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Reporter: consoleReporter{},
	}, time.Second)
	return scope, closer, nil
}

// consoleReporter implements tally.StatsReporter on stderr, so metric lines
// do not interleave with subcommand output on stdout.
type consoleReporter struct{}

func (r consoleReporter) ReportCounter(name string, _ map[string]string, value int64) {
	fmt.Fprintf(os.Stderr, "metric count %s %d\n", name, value)
}

func (r consoleReporter) ReportGauge(name string, _ map[string]string, value float64) {
	fmt.Fprintf(os.Stderr, "metric gauge %s %f\n", name, value)
}

func (r consoleReporter) ReportTimer(name string, _ map[string]string, interval time.Duration) {
	fmt.Fprintf(os.Stderr, "metric timer %s %s\n", name, interval)
}

func (r consoleReporter) ReportHistogramValueSamples(
	name string,
	_ map[string]string,
	_ tally.Buckets,
	bucketLowerBound,
	bucketUpperBound float64,
	samples int64,
) {
	fmt.Fprintf(os.Stderr, "metric histogram %s [%f, %f] samples %d\n",
		name, bucketLowerBound, bucketUpperBound, samples)
}

func (r consoleReporter) ReportHistogramDurationSamples(
	name string,
	_ map[string]string,
	_ tally.Buckets,
	bucketLowerBound,
	bucketUpperBound time.Duration,
	samples int64,
) {
	fmt.Fprintf(os.Stderr, "metric histogram %s [%v, %v] samples %d\n",
		name, bucketLowerBound, bucketUpperBound, samples)
}

func (r consoleReporter) Capabilities() tally.Capabilities { return r }
func (r consoleReporter) Reporting() bool                  { return true }
func (r consoleReporter) Tagging() bool                    { return false }
func (r consoleReporter) Flush()                           {}
