package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	ectypes "github.com/aws/aws-sdk-go-v2/service/elasticache/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/tagsweep/pkg/resource"
)

// ══════════════════════════════════════════════════════════════════════════════
// ELB Tests
// ══════════════════════════════════════════════════════════════════════════════

type mockELBClient struct {
	DescribeLoadBalancersFunc func(ctx context.Context, params *elasticloadbalancingv2.DescribeLoadBalancersInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error)
	DescribeTagsFunc          func(ctx context.Context, params *elasticloadbalancingv2.DescribeTagsInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTagsOutput, error)
}

func (m *mockELBClient) DescribeLoadBalancers(ctx context.Context, params *elasticloadbalancingv2.DescribeLoadBalancersInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error) {
	return m.DescribeLoadBalancersFunc(ctx, params, optFns...)
}

func (m *mockELBClient) DescribeTags(ctx context.Context, params *elasticloadbalancingv2.DescribeTagsInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTagsOutput, error) {
	return m.DescribeTagsFunc(ctx, params, optFns...)
}

const lbARN = "arn:aws:elasticloadbalancing:us-east-1:123456789012:loadbalancer/app/my-lb/abcd"

func TestELBSource_List(t *testing.T) {
	mock := &mockELBClient{
		DescribeLoadBalancersFunc: func(_ context.Context, params *elasticloadbalancingv2.DescribeLoadBalancersInput, _ ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeLoadBalancersOutput, error) {
			if params.Marker == nil {
				return &elasticloadbalancingv2.DescribeLoadBalancersOutput{
					LoadBalancers: []elbtypes.LoadBalancer{
						{LoadBalancerArn: aws.String(lbARN), LoadBalancerName: aws.String("my-lb")},
					},
					NextMarker: aws.String("m1"),
				}, nil
			}
			return &elasticloadbalancingv2.DescribeLoadBalancersOutput{
				LoadBalancers: []elbtypes.LoadBalancer{
					{LoadBalancerArn: aws.String("arn:aws:elasticloadbalancing:us-east-1:1:loadbalancer/net/nlb/ef"), LoadBalancerName: aws.String("nlb")},
				},
			}, nil
		},
	}

	s := &elbSource{client: mock, region: "us-east-1"}
	locs, err := s.List(context.Background())

	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, lbARN, locs[0].Raw)
	assert.Equal(t, "my-lb", locs[0].Name)
	assert.Equal(t, "net/nlb/ef", resource.ExtractID(locs[1].Raw, resource.KindLoadBalancer))
}

func TestELBSource_Tags(t *testing.T) {
	mock := &mockELBClient{
		DescribeTagsFunc: func(_ context.Context, params *elasticloadbalancingv2.DescribeTagsInput, _ ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTagsOutput, error) {
			assert.Equal(t, []string{lbARN}, params.ResourceArns)
			return &elasticloadbalancingv2.DescribeTagsOutput{
				TagDescriptions: []elbtypes.TagDescription{
					{
						ResourceArn: aws.String(lbARN),
						Tags:        []elbtypes.Tag{{Key: aws.String("customer"), Value: aws.String("Globex")}},
					},
				},
			}, nil
		},
	}

	s := &elbSource{client: mock, region: "us-east-1"}
	tags, err := s.Tags(context.Background(), resource.Locator{Raw: lbARN})

	require.NoError(t, err)
	assert.Equal(t, []resource.Tag{{Key: "customer", Value: "Globex"}}, tags)
}

func TestELBSource_TagsEmptyDescriptions(t *testing.T) {
	mock := &mockELBClient{
		DescribeTagsFunc: func(_ context.Context, _ *elasticloadbalancingv2.DescribeTagsInput, _ ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTagsOutput, error) {
			return &elasticloadbalancingv2.DescribeTagsOutput{}, nil
		},
	}

	s := &elbSource{client: mock, region: "us-east-1"}
	tags, err := s.Tags(context.Background(), resource.Locator{Raw: lbARN})

	require.NoError(t, err)
	assert.Empty(t, tags)
}

// ══════════════════════════════════════════════════════════════════════════════
// RDS Tests
// ══════════════════════════════════════════════════════════════════════════════

type mockRDSClient struct {
	DescribeDBInstancesFunc func(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
	ListTagsForResourceFunc func(ctx context.Context, params *rds.ListTagsForResourceInput, optFns ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error)
}

func (m *mockRDSClient) DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
	return m.DescribeDBInstancesFunc(ctx, params, optFns...)
}

func (m *mockRDSClient) ListTagsForResource(ctx context.Context, params *rds.ListTagsForResourceInput, optFns ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error) {
	return m.ListTagsForResourceFunc(ctx, params, optFns...)
}

func TestRDSSource_List(t *testing.T) {
	mock := &mockRDSClient{
		DescribeDBInstancesFunc: func(_ context.Context, _ *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
			return &rds.DescribeDBInstancesOutput{
				DBInstances: []rdstypes.DBInstance{
					{
						DBInstanceIdentifier: aws.String("my-db"),
						DBInstanceArn:        aws.String("arn:aws:rds:us-east-1:123456789012:db:my-db"),
					},
				},
			}, nil
		},
	}

	s := &rdsSource{client: mock, region: "us-east-1"}
	locs, err := s.List(context.Background())

	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, "my-db", locs[0].Name)
	assert.Equal(t, "my-db", resource.ExtractID(locs[0].Raw, resource.KindManagedDB))
}

func TestRDSSource_ListError(t *testing.T) {
	mock := &mockRDSClient{
		DescribeDBInstancesFunc: func(_ context.Context, _ *rds.DescribeDBInstancesInput, _ ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error) {
			return nil, errors.New("access denied")
		},
	}

	s := &rdsSource{client: mock, region: "us-east-1"}
	_, err := s.List(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestRDSSource_Tags(t *testing.T) {
	mock := &mockRDSClient{
		ListTagsForResourceFunc: func(_ context.Context, params *rds.ListTagsForResourceInput, _ ...func(*rds.Options)) (*rds.ListTagsForResourceOutput, error) {
			assert.Equal(t, "arn:aws:rds:us-east-1:123456789012:db:my-db", aws.ToString(params.ResourceName))
			return &rds.ListTagsForResourceOutput{
				TagList: []rdstypes.Tag{
					{Key: aws.String("customer"), Value: aws.String("Initech")},
					{Key: aws.String("env"), Value: aws.String("prod")},
				},
			}, nil
		},
	}

	s := &rdsSource{client: mock, region: "us-east-1"}
	tags, err := s.Tags(context.Background(), resource.Locator{Raw: "arn:aws:rds:us-east-1:123456789012:db:my-db"})

	require.NoError(t, err)
	assert.Equal(t, []resource.Tag{
		{Key: "customer", Value: "Initech"},
		{Key: "env", Value: "prod"},
	}, tags)
}

// ══════════════════════════════════════════════════════════════════════════════
// ElastiCache Tests
// ══════════════════════════════════════════════════════════════════════════════

type mockElastiCacheClient struct {
	DescribeCacheClustersFunc func(ctx context.Context, params *elasticache.DescribeCacheClustersInput, optFns ...func(*elasticache.Options)) (*elasticache.DescribeCacheClustersOutput, error)
	ListTagsForResourceFunc   func(ctx context.Context, params *elasticache.ListTagsForResourceInput, optFns ...func(*elasticache.Options)) (*elasticache.ListTagsForResourceOutput, error)
}

func (m *mockElastiCacheClient) DescribeCacheClusters(ctx context.Context, params *elasticache.DescribeCacheClustersInput, optFns ...func(*elasticache.Options)) (*elasticache.DescribeCacheClustersOutput, error) {
	return m.DescribeCacheClustersFunc(ctx, params, optFns...)
}

func (m *mockElastiCacheClient) ListTagsForResource(ctx context.Context, params *elasticache.ListTagsForResourceInput, optFns ...func(*elasticache.Options)) (*elasticache.ListTagsForResourceOutput, error) {
	return m.ListTagsForResourceFunc(ctx, params, optFns...)
}

func TestElastiCacheSource_List(t *testing.T) {
	mock := &mockElastiCacheClient{
		DescribeCacheClustersFunc: func(_ context.Context, params *elasticache.DescribeCacheClustersInput, _ ...func(*elasticache.Options)) (*elasticache.DescribeCacheClustersOutput, error) {
			if params.Marker == nil {
				return &elasticache.DescribeCacheClustersOutput{
					CacheClusters: []ectypes.CacheCluster{
						{CacheClusterId: aws.String("sessions-001"), ARN: aws.String("arn:aws:elasticache:us-east-1:1:cluster:sessions-001")},
					},
					Marker: aws.String("next"),
				}, nil
			}
			return &elasticache.DescribeCacheClustersOutput{
				CacheClusters: []ectypes.CacheCluster{{CacheClusterId: aws.String("no-arn")}},
			}, nil
		},
	}

	s := &elasticacheSource{client: mock, region: "us-east-1"}
	locs, err := s.List(context.Background())

	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "sessions-001", resource.ExtractID(locs[0].Raw, resource.KindCacheCluster))
	assert.Equal(t, "no-arn", locs[1].Raw)
	assert.Equal(t, "no-arn", resource.ExtractID(locs[1].Raw, resource.KindCacheCluster))
}

func TestElastiCacheSource_TagsError(t *testing.T) {
	mock := &mockElastiCacheClient{
		ListTagsForResourceFunc: func(_ context.Context, _ *elasticache.ListTagsForResourceInput, _ ...func(*elasticache.Options)) (*elasticache.ListTagsForResourceOutput, error) {
			return nil, errors.New("CacheClusterNotFound")
		},
	}

	s := &elasticacheSource{client: mock, region: "us-east-1"}
	_, err := s.Tags(context.Background(), resource.Locator{Raw: "arn:aws:elasticache:us-east-1:1:cluster:gone"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CacheClusterNotFound")
}

func TestElastiCacheSource_Tags(t *testing.T) {
	mock := &mockElastiCacheClient{
		ListTagsForResourceFunc: func(_ context.Context, _ *elasticache.ListTagsForResourceInput, _ ...func(*elasticache.Options)) (*elasticache.ListTagsForResourceOutput, error) {
			return &elasticache.ListTagsForResourceOutput{
				TagList: []ectypes.Tag{{Key: aws.String("customer"), Value: aws.String("Umbrella")}},
			}, nil
		},
	}

	s := &elasticacheSource{client: mock, region: "us-east-1"}
	tags, err := s.Tags(context.Background(), resource.Locator{Raw: "arn:aws:elasticache:us-east-1:1:cluster:c"})

	require.NoError(t, err)
	assert.Equal(t, []resource.Tag{{Key: "customer", Value: "Umbrella"}}, tags)
}

// ══════════════════════════════════════════════════════════════════════════════
// SQS Tests
// ══════════════════════════════════════════════════════════════════════════════

type mockSQSClient struct {
	ListQueuesFunc    func(ctx context.Context, params *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error)
	ListQueueTagsFunc func(ctx context.Context, params *sqs.ListQueueTagsInput, optFns ...func(*sqs.Options)) (*sqs.ListQueueTagsOutput, error)
}

func (m *mockSQSClient) ListQueues(ctx context.Context, params *sqs.ListQueuesInput, optFns ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
	return m.ListQueuesFunc(ctx, params, optFns...)
}

func (m *mockSQSClient) ListQueueTags(ctx context.Context, params *sqs.ListQueueTagsInput, optFns ...func(*sqs.Options)) (*sqs.ListQueueTagsOutput, error) {
	return m.ListQueueTagsFunc(ctx, params, optFns...)
}

func TestSQSSource_List(t *testing.T) {
	mock := &mockSQSClient{
		ListQueuesFunc: func(_ context.Context, params *sqs.ListQueuesInput, _ ...func(*sqs.Options)) (*sqs.ListQueuesOutput, error) {
			// SQS only paginates when MaxResults is set
			require.NotNil(t, params.MaxResults)
			assert.Equal(t, int32(1000), *params.MaxResults)
			if params.NextToken == nil {
				return &sqs.ListQueuesOutput{
					QueueUrls: []string{"https://sqs.us-east-1.amazonaws.com/123/orders--worker1"},
					NextToken: aws.String("t"),
				}, nil
			}
			return &sqs.ListQueuesOutput{
				QueueUrls: []string{"https://sqs.us-east-1.amazonaws.com/123/billing"},
			}, nil
		},
	}

	s := &sqsSource{client: mock, region: "us-east-1"}
	locs, err := s.List(context.Background())

	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "orders--worker1", locs[0].Name)
	assert.Equal(t, "orders", resource.ExtractID(locs[0].Raw, resource.KindQueue))
	assert.Equal(t, "billing", resource.ExtractID(locs[1].Raw, resource.KindQueue))
}

func TestSQSSource_TagsSortedByKey(t *testing.T) {
	mock := &mockSQSClient{
		ListQueueTagsFunc: func(_ context.Context, params *sqs.ListQueueTagsInput, _ ...func(*sqs.Options)) (*sqs.ListQueueTagsOutput, error) {
			assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/123/orders", aws.ToString(params.QueueUrl))
			return &sqs.ListQueueTagsOutput{
				Tags: map[string]string{"team": "payments", "customer": "Acme", "env": "prod"},
			}, nil
		},
	}

	s := &sqsSource{client: mock, region: "us-east-1"}
	tags, err := s.Tags(context.Background(), resource.Locator{Raw: "https://sqs.us-east-1.amazonaws.com/123/orders", Name: "orders"})

	require.NoError(t, err)
	assert.Equal(t, []resource.Tag{
		{Key: "customer", Value: "Acme"},
		{Key: "env", Value: "prod"},
		{Key: "team", Value: "payments"},
	}, tags)
}

func TestSQSSource_TagsError(t *testing.T) {
	mock := &mockSQSClient{
		ListQueueTagsFunc: func(_ context.Context, _ *sqs.ListQueueTagsInput, _ ...func(*sqs.Options)) (*sqs.ListQueueTagsOutput, error) {
			return nil, errors.New("QueueDoesNotExist")
		},
	}

	s := &sqsSource{client: mock, region: "us-east-1"}
	_, err := s.Tags(context.Background(), resource.Locator{Raw: "u", Name: "orders"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders")
}
