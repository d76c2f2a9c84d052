// Package ec2 implements provider.Provider on top of the AWS SDK v2 EC2 client.
package ec2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"k8s.io/utils/ptr"

	"github.com/snapshotalyzer/shotty/pkg/config"
	cnserrors "github.com/snapshotalyzer/shotty/pkg/errors"
	"github.com/snapshotalyzer/shotty/pkg/fleet"
	"github.com/snapshotalyzer/shotty/pkg/provider"
)

// unboundedWait is used as the waiter deadline when no timeout is configured.
// The SDK waiters require a positive maximum.
const unboundedWait = 100 * 365 * 24 * time.Hour

// notFoundCodes are API error codes that mean "no such instance". Listing
// reports them as an empty result, actions as ErrCodeNotFound.
var notFoundCodes = map[string]bool{
	"InvalidInstanceID.NotFound":  true,
	"InvalidInstanceID.Malformed": true,
}

// ec2API is the subset of *ec2.Client used by the provider.
type ec2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	StopInstances(ctx context.Context, params *ec2.StopInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StopInstancesOutput, error)
	StartInstances(ctx context.Context, params *ec2.StartInstancesInput, optFns ...func(*ec2.Options)) (*ec2.StartInstancesOutput, error)
	RebootInstances(ctx context.Context, params *ec2.RebootInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RebootInstancesOutput, error)
	DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	DescribeSnapshots(ctx context.Context, params *ec2.DescribeSnapshotsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error)
	CreateSnapshot(ctx context.Context, params *ec2.CreateSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.CreateSnapshotOutput, error)
}

// Provider talks to EC2.
type Provider struct {
	client      ec2API
	waitTimeout time.Duration
}

var _ provider.Provider = (*Provider)(nil)

// New loads the AWS configuration for cfg's profile and region and returns
// a Provider using it.
func New(ctx context.Context, cfg *config.Config) (*Provider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Profile() != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile()))
	}
	if cfg.Region() != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region()))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for profile %q: %w", cfg.Profile(), err)
	}

	slog.Debug("loaded AWS config",
		slog.String("profile", cfg.Profile()),
		slog.String("region", awsCfg.Region),
	)

	return newWithClient(ec2.NewFromConfig(awsCfg), cfg.WaitTimeout()), nil
}

func newWithClient(client ec2API, waitTimeout time.Duration) *Provider {
	if waitTimeout <= 0 {
		waitTimeout = unboundedWait
	}
	return &Provider{
		client:      client,
		waitTimeout: waitTimeout,
	}
}

// ListInstances describes the instances matching filters across all pages.
func (p *Provider) ListInstances(ctx context.Context, filters []provider.Filter) ([]fleet.Instance, error) {
	input := &ec2.DescribeInstancesInput{}
	for _, f := range filters {
		input.Filters = append(input.Filters, ec2types.Filter{
			Name:   ptr.To(f.Name),
			Values: f.Values,
		})
	}

	var out []fleet.Instance
	pager := ec2.NewDescribeInstancesPaginator(p.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if notFoundCodes[apiErrorCode(err)] {
				return nil, nil
			}
			return nil, providerError("failed to list instances", err, nil)
		}
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				out = append(out, toInstance(inst))
			}
		}
	}
	return out, nil
}

func (p *Provider) StopInstance(ctx context.Context, id string) error {
	if _, err := p.client.StopInstances(ctx, &ec2.StopInstancesInput{InstanceIds: []string{id}}); err != nil {
		return providerError("failed to stop instance", err, map[string]any{"instance": id})
	}
	return nil
}

func (p *Provider) StartInstance(ctx context.Context, id string) error {
	if _, err := p.client.StartInstances(ctx, &ec2.StartInstancesInput{InstanceIds: []string{id}}); err != nil {
		return providerError("failed to start instance", err, map[string]any{"instance": id})
	}
	return nil
}

func (p *Provider) RebootInstance(ctx context.Context, id string) error {
	if _, err := p.client.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: []string{id}}); err != nil {
		return providerError("failed to reboot instance", err, map[string]any{"instance": id})
	}
	return nil
}

func (p *Provider) WaitUntilStopped(ctx context.Context, id string) error {
	w := ec2.NewInstanceStoppedWaiter(p.client)
	if err := w.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}}, p.waitTimeout); err != nil {
		return providerError("instance did not stop", err, map[string]any{"instance": id})
	}
	return nil
}

func (p *Provider) WaitUntilRunning(ctx context.Context, id string) error {
	w := ec2.NewInstanceRunningWaiter(p.client)
	if err := w.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}}, p.waitTimeout); err != nil {
		return providerError("instance did not start", err, map[string]any{"instance": id})
	}
	return nil
}

// ListVolumes describes the volumes attached to the instance.
func (p *Provider) ListVolumes(ctx context.Context, instanceID string) ([]fleet.Volume, error) {
	input := &ec2.DescribeVolumesInput{
		Filters: []ec2types.Filter{{
			Name:   ptr.To("attachment.instance-id"),
			Values: []string{instanceID},
		}},
	}

	var out []fleet.Volume
	pager := ec2.NewDescribeVolumesPaginator(p.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, providerError("failed to list volumes", err, map[string]any{"instance": instanceID})
		}
		for _, v := range page.Volumes {
			out = append(out, fleet.Volume{
				ID:         ptr.Deref(v.VolumeId, ""),
				InstanceID: instanceID,
				State:      string(v.State),
				Size:       ptr.Deref(v.Size, 0),
				Encrypted:  ptr.Deref(v.Encrypted, false),
			})
		}
	}
	return out, nil
}

// ListSnapshots describes the account's snapshots of the volume, newest first.
func (p *Provider) ListSnapshots(ctx context.Context, volumeID string) ([]fleet.Snapshot, error) {
	input := &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
		Filters: []ec2types.Filter{{
			Name:   ptr.To("volume-id"),
			Values: []string{volumeID},
		}},
	}

	var out []fleet.Snapshot
	pager := ec2.NewDescribeSnapshotsPaginator(p.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, providerError("failed to list snapshots", err, map[string]any{"volume": volumeID})
		}
		for _, s := range page.Snapshots {
			out = append(out, fleet.Snapshot{
				ID:        ptr.Deref(s.SnapshotId, ""),
				VolumeID:  ptr.Deref(s.VolumeId, volumeID),
				State:     fleet.SnapshotState(s.State),
				Progress:  ptr.Deref(s.Progress, ""),
				StartTime: ptr.Deref(s.StartTime, time.Time{}),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}

func (p *Provider) CreateSnapshot(ctx context.Context, volumeID, description string) (fleet.Snapshot, error) {
	res, err := p.client.CreateSnapshot(ctx, &ec2.CreateSnapshotInput{
		VolumeId:    ptr.To(volumeID),
		Description: ptr.To(description),
	})
	if err != nil {
		return fleet.Snapshot{}, providerError("failed to create snapshot", err, map[string]any{"volume": volumeID})
	}
	return fleet.Snapshot{
		ID:        ptr.Deref(res.SnapshotId, ""),
		VolumeID:  ptr.Deref(res.VolumeId, volumeID),
		State:     fleet.SnapshotState(res.State),
		Progress:  ptr.Deref(res.Progress, ""),
		StartTime: ptr.Deref(res.StartTime, time.Time{}),
	}, nil
}

func toInstance(inst ec2types.Instance) fleet.Instance {
	out := fleet.Instance{
		ID:            ptr.Deref(inst.InstanceId, ""),
		InstanceType:  string(inst.InstanceType),
		PublicDNSName: ptr.Deref(inst.PublicDnsName, ""),
		Tags:          make(map[string]string, len(inst.Tags)),
	}
	if inst.State != nil {
		out.State = fleet.PowerState(inst.State.Name)
	}
	if inst.Placement != nil {
		out.AvailabilityZone = ptr.Deref(inst.Placement.AvailabilityZone, "")
	}
	for _, t := range inst.Tags {
		out.Tags[ptr.Deref(t.Key, "")] = ptr.Deref(t.Value, "")
	}
	return out
}

// apiErrorCode returns the AWS error code in err's chain, or "".
func apiErrorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

func providerError(msg string, err error, ctx map[string]any) error {
	if code := apiErrorCode(err); code != "" {
		if ctx == nil {
			ctx = make(map[string]any, 1)
		}
		ctx["aws_code"] = code
	}
	code := cnserrors.ErrCodeProviderAction
	if notFoundCodes[apiErrorCode(err)] {
		code = cnserrors.ErrCodeNotFound
	}
	return cnserrors.WrapWithContext(code, msg, err, ctx)
}
