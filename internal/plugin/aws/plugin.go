// Package aws implements the AWS inventory for tagsweep.
package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/yairfalse/tagsweep/internal/plugin"
	"github.com/yairfalse/tagsweep/pkg/resource"
)

// ProviderName is the registry name of the AWS inventory.
const ProviderName = "aws"

// Plugin is the AWS inventory for one region.
type Plugin struct {
	region    string
	partition string

	// AWS clients (interfaces for testability)
	ec2Client         EC2API
	elbClient         ELBAPI
	rdsClient         RDSAPI
	elasticacheClient ElastiCacheAPI
	sqsClient         SQSAPI
}

// Config holds AWS plugin configuration.
type Config struct {
	Region  string
	Profile string
}

// New creates the AWS inventory for cfg.Region using the default credential chain.
func New(ctx context.Context, cfg Config) (*Plugin, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Plugin{
		region:            cfg.Region,
		partition:         partitionFor(cfg.Region),
		ec2Client:         ec2.NewFromConfig(awsCfg),
		elbClient:         elasticloadbalancingv2.NewFromConfig(awsCfg),
		rdsClient:         rds.NewFromConfig(awsCfg),
		elasticacheClient: elasticache.NewFromConfig(awsCfg),
		sqsClient:         sqs.NewFromConfig(awsCfg),
	}, nil
}

// Factory returns a plugin.Factory that builds AWS inventories with profile.
func Factory(profile string) plugin.Factory {
	return func(ctx context.Context, region string) (plugin.Inventory, error) {
		p, err := New(ctx, Config{Region: region, Profile: profile})
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Register adds the AWS factory to r.
func Register(r *plugin.Registry, profile string) {
	r.Register(ProviderName, Factory(profile))
}

// Region returns the region this plugin lists.
func (p *Plugin) Region() string {
	return p.region
}

// Source returns the source for kind.
func (p *Plugin) Source(kind resource.Kind) (plugin.Source, bool) {
	switch kind {
	case resource.KindVM:
		return &ec2Source{client: p.ec2Client, region: p.region, partition: p.partition}, true
	case resource.KindLoadBalancer:
		return &elbSource{client: p.elbClient, region: p.region}, true
	case resource.KindManagedDB:
		return &rdsSource{client: p.rdsClient, region: p.region}, true
	case resource.KindCacheCluster:
		return &elasticacheSource{client: p.elasticacheClient, region: p.region}, true
	case resource.KindQueue:
		return &sqsSource{client: p.sqsClient, region: p.region}, true
	}
	return nil, false
}

func partitionFor(region string) string {
	switch {
	case strings.HasPrefix(region, "cn-"):
		return "aws-cn"
	case strings.HasPrefix(region, "us-gov-"):
		return "aws-us-gov"
	default:
		return "aws"
	}
}
