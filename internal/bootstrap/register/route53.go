package register

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
)

// Route53Registrar publishes a node's address as an SRV record in a
// Route53 hosted zone, keyed by node ID under domainSuffix.
type Route53Registrar struct {
	Client       *route53.Client
	HostedZoneID string
	DomainSuffix string
	TTL          int64
}

// NewRoute53Registrar loads AWS config from the environment/instance
// profile and returns a registrar bound to hostedZoneID/domainSuffix.
func NewRoute53Registrar(ctx context.Context, hostedZoneID, domainSuffix string, ttl int64) (*Route53Registrar, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &Route53Registrar{
		Client:       route53.NewFromConfig(awsCfg),
		HostedZoneID: hostedZoneID,
		DomainSuffix: strings.TrimSuffix(domainSuffix, "."),
		TTL:          ttl,
	}, nil
}

func (r *Route53Registrar) change(ctx context.Context, action types.ChangeAction, nodeID, targetHost string, port int) error {
	recordName := fmt.Sprintf("%s.%s.", nodeID, r.DomainSuffix)
	targetHost = strings.TrimSuffix(targetHost, ".")

	input := &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(r.HostedZoneID),
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{
				{
					Action: action,
					ResourceRecordSet: &types.ResourceRecordSet{
						Name: aws.String(recordName),
						Type: types.RRTypeSrv,
						TTL:  aws.Int64(r.TTL),
						ResourceRecords: []types.ResourceRecord{
							{Value: aws.String(fmt.Sprintf("0 0 %d %s.", port, targetHost))},
						},
					},
				},
			},
		},
	}
	_, err := r.Client.ChangeResourceRecordSets(ctx, input)
	return err
}

// RegisterNode upserts nodeID's SRV record.
func (r *Route53Registrar) RegisterNode(ctx context.Context, nodeID, targetHost string, port int) error {
	return r.change(ctx, types.ChangeActionUpsert, nodeID, targetHost, port)
}

// DeregisterNode removes nodeID's SRV record.
func (r *Route53Registrar) DeregisterNode(ctx context.Context, nodeID, targetHost string, port int) error {
	return r.change(ctx, types.ChangeActionDelete, nodeID, targetHost, port)
}

// RenewNode is a no-op: Route53 records don't expire between upserts.
func (r *Route53Registrar) RenewNode(ctx context.Context, nodeID, targetHost string, port int) error {
	return nil
}

// Close is a no-op: the Route53 client holds no resources to release.
func (r *Route53Registrar) Close() error {
	return nil
}
