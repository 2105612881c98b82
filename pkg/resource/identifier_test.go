package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractID(t *testing.T) {
	tests := []struct {
		name    string
		locator string
		kind    Kind
		want    string
	}{
		{
			name:    "ec2 instance arn",
			locator: "arn:aws:ec2:us-east-1:123456789012:instance/i-0abc123",
			kind:    KindVM,
			want:    "i-0abc123",
		},
		{
			name:    "application load balancer arn",
			locator: "arn:aws:elasticloadbalancing:us-east-1:123456789012:loadbalancer/app/my-lb/abcd",
			kind:    KindLoadBalancer,
			want:    "app/my-lb/abcd",
		},
		{
			name:    "rds instance arn",
			locator: "arn:aws:rds:eu-central-1:123456789012:db:orders-primary",
			kind:    KindManagedDB,
			want:    "orders-primary",
		},
		{
			name:    "elasticache cluster arn",
			locator: "arn:aws:elasticache:us-west-2:123456789012:cluster:sessions-001",
			kind:    KindCacheCluster,
			want:    "sessions-001",
		},
		{
			name:    "queue with worker suffix",
			locator: "https://queue.example/123/orders--worker1",
			kind:    KindQueue,
			want:    "orders",
		},
		{
			name:    "queue without separator",
			locator: "https://queue.example/123/orders",
			kind:    KindQueue,
			want:    "orders",
		},
		{
			name:    "fifo queue keeps suffix",
			locator: "https://sqs.us-east-1.amazonaws.com/123456789012/billing.fifo",
			kind:    KindQueue,
			want:    "billing.fifo",
		},
		{
			name:    "queue with several separators",
			locator: "https://sqs.us-east-1.amazonaws.com/123456789012/acme--ingest--dlq",
			kind:    KindQueue,
			want:    "acme",
		},
		{
			name:    "vm without delimiter falls back",
			locator: "i-0abc123",
			kind:    KindVM,
			want:    "i-0abc123",
		},
		{
			name:    "rds without delimiter falls back",
			locator: "orders-primary",
			kind:    KindManagedDB,
			want:    "orders-primary",
		},
		{
			name:    "bare queue name",
			locator: "orders--worker2",
			kind:    KindQueue,
			want:    "orders",
		},
		{
			name:    "invalid kind returns locator",
			locator: "arn:aws:ec2:us-east-1:123456789012:instance/i-1",
			kind:    Kind(42),
			want:    "arn:aws:ec2:us-east-1:123456789012:instance/i-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractID(tt.locator, tt.kind))
		})
	}
}

func TestQueueName(t *testing.T) {
	assert.Equal(t, "orders", QueueName("https://sqs.us-east-1.amazonaws.com/123/orders"))
	assert.Equal(t, "orders", QueueName("https://sqs.us-east-1.amazonaws.com/123/orders/"))
	assert.Equal(t, "orders", QueueName("orders"))
}
