package cache

import (
	"context"
	"io"

	"github.com/linuxmatters/levelset/internal/audio"
	"github.com/linuxmatters/levelset/internal/loudness"
	"github.com/sirupsen/logrus"
)

// CachedMeasurer serves file measurements from a Store, falling back to the
// wrapped Measurer on a miss. Buffers are always measured afresh.
type CachedMeasurer struct {
	inner loudness.Measurer
	store *Store
	meter string
	log   logrus.FieldLogger
}

// NewCachedMeasurer wraps inner. meter names the measurement backend so
// results from different meters never mix. log may be nil.
func NewCachedMeasurer(inner loudness.Measurer, store *Store, meter string, log logrus.FieldLogger) *CachedMeasurer {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &CachedMeasurer{inner: inner, store: store, meter: meter, log: log}
}

// MeasureFile returns the cached measurement when the file is unchanged.
// Cache read and write failures are logged and never fail the measurement.
func (c *CachedMeasurer) MeasureFile(ctx context.Context, path string) (loudness.Measurement, error) {
	log := c.log.WithField("file", path)

	key, err := KeyFor(path, c.meter)
	if err != nil {
		return c.inner.MeasureFile(ctx, path)
	}

	if m, ok, err := c.store.Lookup(key); err != nil {
		log.WithError(err).Warn("cache lookup failed")
	} else if ok {
		log.Debug("cache hit")
		return m, nil
	}

	m, err := c.inner.MeasureFile(ctx, path)
	if err != nil {
		return m, err
	}

	if err := c.store.Save(key, m); err != nil {
		log.WithError(err).Warn("cache save failed")
	}
	return m, nil
}

// MeasureBuffer passes straight through to the wrapped Measurer
func (c *CachedMeasurer) MeasureBuffer(ctx context.Context, buf *audio.SampleBuffer) (loudness.Measurement, error) {
	return c.inner.MeasureBuffer(ctx, buf)
}
