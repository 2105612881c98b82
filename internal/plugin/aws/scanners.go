package aws

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/elasticache"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/tagsweep/pkg/resource"
)

// ec2Source lists EC2 instances.
type ec2Source struct {
	client    EC2API
	region    string
	partition string
}

func (s *ec2Source) Kind() resource.Kind { return resource.KindVM }

func (s *ec2Source) List(ctx context.Context) ([]resource.Locator, error) {
	var locators []resource.Locator
	var nextToken *string

	for {
		output, err := s.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: nextToken})
		if err != nil {
			return nil, fmt.Errorf("describe instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			owner := aws.ToString(reservation.OwnerId)
			for _, instance := range reservation.Instances {
				id := aws.ToString(instance.InstanceId)
				locators = append(locators, resource.Locator{
					Raw:    fmt.Sprintf("arn:%s:ec2:%s:%s:instance/%s", s.partition, s.region, owner, id),
					Name:   id,
					Region: s.region,
				})
			}
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	log.Debug().Str("region", s.region).Int("count", len(locators)).Msg("listed ec2 instances")
	return locators, nil
}

func (s *ec2Source) Tags(ctx context.Context, loc resource.Locator) ([]resource.Tag, error) {
	id := loc.Name
	if id == "" {
		id = resource.ExtractID(loc.Raw, resource.KindVM)
	}

	var tags []resource.Tag
	var nextToken *string

	for {
		output, err := s.client.DescribeTags(ctx, &ec2.DescribeTagsInput{
			Filters: []ec2types.Filter{
				{Name: aws.String("resource-id"), Values: []string{id}},
			},
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("describe tags %s: %w", id, err)
		}

		for _, tag := range output.Tags {
			tags = append(tags, resource.Tag{Key: aws.ToString(tag.Key), Value: aws.ToString(tag.Value)})
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	return tags, nil
}

// elbSource lists ELBv2 load balancers.
type elbSource struct {
	client ELBAPI
	region string
}

func (s *elbSource) Kind() resource.Kind { return resource.KindLoadBalancer }

func (s *elbSource) List(ctx context.Context) ([]resource.Locator, error) {
	var locators []resource.Locator
	var marker *string

	for {
		output, err := s.client.DescribeLoadBalancers(ctx, &elasticloadbalancingv2.DescribeLoadBalancersInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe load balancers: %w", err)
		}

		for _, lb := range output.LoadBalancers {
			locators = append(locators, resource.Locator{
				Raw:    aws.ToString(lb.LoadBalancerArn),
				Name:   aws.ToString(lb.LoadBalancerName),
				Region: s.region,
			})
		}

		if output.NextMarker == nil {
			break
		}
		marker = output.NextMarker
	}

	log.Debug().Str("region", s.region).Int("count", len(locators)).Msg("listed load balancers")
	return locators, nil
}

func (s *elbSource) Tags(ctx context.Context, loc resource.Locator) ([]resource.Tag, error) {
	output, err := s.client.DescribeTags(ctx, &elasticloadbalancingv2.DescribeTagsInput{
		ResourceArns: []string{loc.Raw},
	})
	if err != nil {
		return nil, fmt.Errorf("describe tags %s: %w", loc.Raw, err)
	}

	var tags []resource.Tag
	for _, desc := range output.TagDescriptions {
		if aws.ToString(desc.ResourceArn) != "" && aws.ToString(desc.ResourceArn) != loc.Raw {
			continue
		}
		for _, tag := range desc.Tags {
			tags = append(tags, resource.Tag{Key: aws.ToString(tag.Key), Value: aws.ToString(tag.Value)})
		}
	}
	return tags, nil
}

// rdsSource lists RDS DB instances.
type rdsSource struct {
	client RDSAPI
	region string
}

func (s *rdsSource) Kind() resource.Kind { return resource.KindManagedDB }

func (s *rdsSource) List(ctx context.Context) ([]resource.Locator, error) {
	var locators []resource.Locator
	var marker *string

	for {
		output, err := s.client.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe db instances: %w", err)
		}

		for _, instance := range output.DBInstances {
			locators = append(locators, resource.Locator{
				Raw:    aws.ToString(instance.DBInstanceArn),
				Name:   aws.ToString(instance.DBInstanceIdentifier),
				Region: s.region,
			})
		}

		if output.Marker == nil {
			break
		}
		marker = output.Marker
	}

	log.Debug().Str("region", s.region).Int("count", len(locators)).Msg("listed db instances")
	return locators, nil
}

func (s *rdsSource) Tags(ctx context.Context, loc resource.Locator) ([]resource.Tag, error) {
	output, err := s.client.ListTagsForResource(ctx, &rds.ListTagsForResourceInput{
		ResourceName: aws.String(loc.Raw),
	})
	if err != nil {
		return nil, fmt.Errorf("list tags %s: %w", loc.Raw, err)
	}

	tags := make([]resource.Tag, 0, len(output.TagList))
	for _, tag := range output.TagList {
		tags = append(tags, resource.Tag{Key: aws.ToString(tag.Key), Value: aws.ToString(tag.Value)})
	}
	return tags, nil
}

// elasticacheSource lists ElastiCache clusters.
type elasticacheSource struct {
	client ElastiCacheAPI
	region string
}

func (s *elasticacheSource) Kind() resource.Kind { return resource.KindCacheCluster }

func (s *elasticacheSource) List(ctx context.Context) ([]resource.Locator, error) {
	var locators []resource.Locator
	var marker *string

	for {
		output, err := s.client.DescribeCacheClusters(ctx, &elasticache.DescribeCacheClustersInput{Marker: marker})
		if err != nil {
			return nil, fmt.Errorf("describe cache clusters: %w", err)
		}

		for _, cluster := range output.CacheClusters {
			id := aws.ToString(cluster.CacheClusterId)
			raw := aws.ToString(cluster.ARN)
			if raw == "" {
				raw = id
			}
			locators = append(locators, resource.Locator{Raw: raw, Name: id, Region: s.region})
		}

		if output.Marker == nil {
			break
		}
		marker = output.Marker
	}

	log.Debug().Str("region", s.region).Int("count", len(locators)).Msg("listed cache clusters")
	return locators, nil
}

func (s *elasticacheSource) Tags(ctx context.Context, loc resource.Locator) ([]resource.Tag, error) {
	output, err := s.client.ListTagsForResource(ctx, &elasticache.ListTagsForResourceInput{
		ResourceName: aws.String(loc.Raw),
	})
	if err != nil {
		return nil, fmt.Errorf("list tags %s: %w", loc.Raw, err)
	}

	tags := make([]resource.Tag, 0, len(output.TagList))
	for _, tag := range output.TagList {
		tags = append(tags, resource.Tag{Key: aws.ToString(tag.Key), Value: aws.ToString(tag.Value)})
	}
	return tags, nil
}

// sqsPageSize is the largest ListQueues page. Without MaxResults the API
// returns at most 1000 queues and no NextToken.
const sqsPageSize = 1000

// sqsSource lists SQS queues.
type sqsSource struct {
	client SQSAPI
	region string
}

func (s *sqsSource) Kind() resource.Kind { return resource.KindQueue }

func (s *sqsSource) List(ctx context.Context) ([]resource.Locator, error) {
	var locators []resource.Locator
	var nextToken *string

	for {
		output, err := s.client.ListQueues(ctx, &sqs.ListQueuesInput{
			MaxResults: aws.Int32(sqsPageSize),
			NextToken:  nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("list queues: %w", err)
		}

		for _, queueURL := range output.QueueUrls {
			locators = append(locators, resource.Locator{
				Raw:    queueURL,
				Name:   resource.QueueName(queueURL),
				Region: s.region,
			})
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	log.Info().Str("region", s.region).Int("count", len(locators)).Msg("found queues")
	return locators, nil
}

// Tags returns queue tags ordered by key; the API returns an unordered map.
func (s *sqsSource) Tags(ctx context.Context, loc resource.Locator) ([]resource.Tag, error) {
	output, err := s.client.ListQueueTags(ctx, &sqs.ListQueueTagsInput{QueueUrl: aws.String(loc.Raw)})
	if err != nil {
		return nil, fmt.Errorf("list queue tags %s: %w", loc.Name, err)
	}

	keys := make([]string, 0, len(output.Tags))
	for k := range output.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]resource.Tag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, resource.Tag{Key: k, Value: output.Tags[k]})
	}
	return tags, nil
}
