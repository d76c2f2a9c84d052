package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapshotalyzer/shotty/pkg/fleet"
	"github.com/snapshotalyzer/shotty/pkg/provider/fake"
)

func TestDispatcher(t *testing.T) {
	tests := []struct {
		name      string
		op        string
		fakeOp    fake.Op
		run       func(*Dispatcher, context.Context, *fake.Provider, *testing.T) *Report
		initial   fleet.PowerState
		wantState fleet.PowerState
	}{
		{
			name:    "stop",
			op:      OpStop,
			fakeOp:  fake.OpStop,
			initial: fleet.StateRunning,
			run: func(d *Dispatcher, ctx context.Context, p *fake.Provider, t *testing.T) *Report {
				return d.Stop(ctx, resolve(t, p, "demo"))
			},
			wantState: fleet.StateStopping,
		},
		{
			name:    "start",
			op:      OpStart,
			fakeOp:  fake.OpStart,
			initial: fleet.StateStopped,
			run: func(d *Dispatcher, ctx context.Context, p *fake.Provider, t *testing.T) *Report {
				return d.Start(ctx, resolve(t, p, "demo"))
			},
			wantState: fleet.StatePending,
		},
		{
			name:    "reboot",
			op:      OpReboot,
			fakeOp:  fake.OpReboot,
			initial: fleet.StateRunning,
			run: func(d *Dispatcher, ctx context.Context, p *fake.Provider, t *testing.T) *Report {
				return d.Reboot(ctx, resolve(t, p, "demo"))
			},
			wantState: fleet.StateRunning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fake.New()
			p.AddInstance(fleet.Instance{ID: "i-1", State: tt.initial, Tags: demoTags()})
			p.AddInstance(fleet.Instance{ID: "i-2", State: tt.initial, Tags: demoTags()})
			p.AddInstance(fleet.Instance{ID: "i-3", State: tt.initial})
			boom := errors.New("IncorrectInstanceState")
			p.FailOn(tt.fakeOp, "i-1", boom)

			before := testutil.ToFloat64(instanceOutcomes.WithLabelValues(tt.op, resultError))

			report := tt.run(NewDispatcher(p), context.Background(), p, t)
			require.NotNil(t, report)
			assert.Equal(t, tt.op, report.Operation)

			// the failure on i-1 does not stop the sweep
			assert.Equal(t, []string{"i-1", "i-2"}, p.CallsFor(tt.fakeOp))
			require.Len(t, report.Outcomes, 2)
			assert.ErrorIs(t, report.Outcome("i-1").Err, boom)
			assert.NoError(t, report.Outcome("i-2").Err)
			assert.Equal(t, 1, report.Failed())

			inst, _ := p.Instance("i-2")
			assert.Equal(t, tt.wantState, inst.State)
			assert.Empty(t, p.CallsFor(fake.OpWaitStopped))
			assert.Empty(t, p.CallsFor(fake.OpWaitRunning))

			assert.Equal(t, before+1, testutil.ToFloat64(instanceOutcomes.WithLabelValues(tt.op, resultError)))
		})
	}
}

func TestDispatcher_ListFailure(t *testing.T) {
	p := fake.New()
	boom := errors.New("RequestLimitExceeded")
	p.FailOn(fake.OpListInstances, "", boom)

	report := NewDispatcher(p).Stop(context.Background(), resolve(t, p, "demo"))
	assert.ErrorIs(t, report.ListErr, boom)
	assert.Empty(t, report.Outcomes)
}
