package source

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jondoveston/vmtop/internal/model"
)

type fakeSource struct {
	entities    []string
	entitiesErr error
	series      map[string]model.RawSeries
	seriesErr   map[string]error
	services    map[string]model.ServiceStatus
	servicesErr error
	calls       []string
}

func (f *fakeSource) Entities(ctx context.Context) ([]string, error) {
	f.calls = append(f.calls, "list")
	return f.entities, f.entitiesErr
}

func (f *fakeSource) Metrics(ctx context.Context, id string) (model.RawSeries, error) {
	f.calls = append(f.calls, "metrics:"+id)
	if err := f.seriesErr[id]; err != nil {
		return model.RawSeries{}, err
	}
	return f.series[id], nil
}

type fakeServiceSource struct {
	fakeSource
}

func (f *fakeServiceSource) Services(ctx context.Context) (map[string]model.ServiceStatus, error) {
	return f.services, f.servicesErr
}

func newObservedFetcher(src Source) (*Fetcher, *observer.ObservedLogs, *Metrics) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := NewMetrics(prometheus.NewRegistry())
	return NewFetcher(src, zap.New(core), m), logs, m
}

func TestFetcher_Entities(t *testing.T) {
	f, logs, m := newObservedFetcher(&fakeSource{entities: []string{"vm1", "vm2"}})

	assert.Equal(t, []string{"vm1", "vm2"}, f.Entities(context.Background()))
	assert.Zero(t, logs.Len())
	assert.Equal(t, 1, testutil.CollectAndCount(m.Duration))
}

func TestFetcher_EntitiesFailure(t *testing.T) {
	src := &fakeSource{entitiesErr: networkErr(OpList, "", errors.New("connection refused"))}
	f, logs, m := newObservedFetcher(src)

	got := f.Entities(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues(OpList, string(KindNetwork))))
	entries := logs.FilterMessage("fetch failed, using empty result").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "list", entries[0].ContextMap()["op"])
	assert.Equal(t, "network", entries[0].ContextMap()["kind"])
}

func TestFetcher_NilResultsBecomeEmpty(t *testing.T) {
	f, _, _ := newObservedFetcher(&fakeServiceSource{})

	ids := f.Entities(context.Background())
	assert.NotNil(t, ids)
	assert.Empty(t, ids)

	series := f.Metrics(context.Background(), "vm1")
	assert.NotNil(t, series)
	assert.Empty(t, series)

	services := f.Services(context.Background())
	assert.NotNil(t, services)
	assert.Empty(t, services)
}

func TestFetcher_Metrics(t *testing.T) {
	src := &fakeSource{
		series: map[string]model.RawSeries{
			"vm1": {{MeasureTime: "t1", CPUUsage: 10}},
		},
		seriesErr: map[string]error{
			"vm2": decodeErr(OpMetrics, "vm2", errors.New("not a literal")),
		},
	}
	f, logs, m := newObservedFetcher(src)

	assert.Equal(t, model.RawSeries{{MeasureTime: "t1", CPUUsage: 10}}, f.Metrics(context.Background(), "vm1"))

	got := f.Metrics(context.Background(), "vm2")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues(OpMetrics, string(KindDecode))))

	entries := logs.FilterField(zap.String("entity", "vm2")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "decode", entries[0].ContextMap()["kind"])
}

func TestFetcher_EmptyIDNeverReachesSource(t *testing.T) {
	src := &fakeSource{}
	f, _, m := newObservedFetcher(src)

	got := f.Metrics(context.Background(), "")
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, src.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues(OpMetrics, string(KindInvalid))))
}

func TestFetcher_CanceledLogsAtDebug(t *testing.T) {
	src := &fakeSource{seriesErr: map[string]error{
		"vm1": networkErr(OpMetrics, "vm1", context.Canceled),
	}}
	f, logs, m := newObservedFetcher(src)

	f.Metrics(context.Background(), "vm1")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues(OpMetrics, string(KindCanceled))))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
}

func TestFetcher_Services(t *testing.T) {
	want := map[string]model.ServiceStatus{"web": {ID: 1, Name: "web"}}
	f, _, _ := newObservedFetcher(&fakeServiceSource{fakeSource{services: want}})
	assert.Equal(t, want, f.Services(context.Background()))

	f, _, m := newObservedFetcher(&fakeServiceSource{fakeSource{servicesErr: networkErr(OpServices, "", errors.New("down"))}})
	got := f.Services(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues(OpServices, string(KindNetwork))))
}

func TestFetcher_ServicesUnsupported(t *testing.T) {
	f, logs, _ := newObservedFetcher(&fakeSource{})

	got := f.Services(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, logs.Len())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "fetch error", err: decodeErr(OpList, "", errors.New("x")), want: KindDecode},
		{name: "wrapped fetch error", err: errors.Join(errors.New("outer"), invalidErr(OpMetrics, "", errEmptyID)), want: KindInvalid},
		{name: "plain error", err: errors.New("boom"), want: KindNetwork},
		{name: "canceled", err: context.Canceled, want: KindCanceled},
		{name: "deadline", err: networkErr(OpList, "", context.DeadlineExceeded), want: KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
			assert.True(t, IsKind(tt.err, tt.want))
		})
	}
	assert.False(t, IsKind(nil, KindNetwork))
}

func TestFetchError_Error(t *testing.T) {
	err := networkErr(OpMetrics, "vm1", errors.New("refused"))
	assert.Equal(t, `network metrics "vm1": refused`, err.Error())

	err = decodeErr(OpList, "", errors.New("bad"))
	assert.Equal(t, "decode list: bad", err.Error())
	assert.EqualError(t, errors.Unwrap(err), "bad")
}
