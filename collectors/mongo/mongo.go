// Package mongo samples a MongoDB replica set member's local state via the
// admin replSetGetStatus command.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lukaspustina/rs-collector/config"
	"github.com/lukaspustina/rs-collector/models"
)

// Collector samples one MongoDB replica set member.
type Collector struct {
	cfg    config.MongoConfig
	id     models.Id
	client *mongo.Client
}

// New constructs a Collector for cfg. Init must be called before Collect.
func New(cfg config.MongoConfig) *Collector {
	return &Collector{
		cfg: cfg,
		id:  models.Id(fmt.Sprintf("mongo#%s#%s@%s:%d", cfg.Name, cfg.User, cfg.Host, cfg.Port)),
	}
}

// CreateInstances builds one Collector per configured replica set member,
// mirroring collectors::mongo::create_instances.
func CreateInstances(cfg *config.Config) []*Collector {
	out := make([]*Collector, 0, len(cfg.Mongo))
	for _, m := range cfg.Mongo {
		out = append(out, New(m))
	}
	return out
}

func (c *Collector) Id() models.Id { return c.id }

func (c *Collector) uri() string {
	if c.cfg.User != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%d", c.cfg.User, c.cfg.Password, c.cfg.Host, c.cfg.Port)
	}
	return fmt.Sprintf("mongodb://%s:%d", c.cfg.Host, c.cfg.Port)
}

func (c *Collector) Init() error {
	if c.client != nil {
		_ = c.client.Disconnect(context.Background())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.uri()))
	if err != nil {
		return fmt.Errorf("mongo: connect %s: %w", c.id, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("mongo: ping %s: %w", c.id, err)
	}
	c.client = client
	return nil
}

func (c *Collector) Metadata() []models.Metadata {
	return []models.Metadata{
		{
			Metric: "mongo.replicaset.mystate",
			Rate:   models.RateGauge,
			Unit:   "",
			Description: "Local ReplicaSet state: 0 = startup, 1 = primary, 2 = secondary, " +
				"3 = recovering, 5 = startup2, 6 = unknown, 7 = arbiter, 8 = down, " +
				"9 = rollback, 10 = removed",
		},
	}
}

func (c *Collector) Collect() ([]models.Sample, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result bson.M
	cmd := bson.D{{Key: "replSetGetStatus", Value: 1}}
	if err := c.client.Database("admin").RunCommand(ctx, cmd).Decode(&result); err != nil {
		return nil, fmt.Errorf("mongo: replSetGetStatus %s: %w", c.id, err)
	}

	myState, ok := result["myState"]
	if !ok {
		return nil, nil
	}
	value, err := toFloat64(myState)
	if err != nil {
		return nil, fmt.Errorf("mongo: myState %s: %w", c.id, err)
	}

	return []models.Sample{
		{
			Time:   time.Now(),
			Metric: "mongo.replicaset.mystate",
			Value:  value,
			Tags:   models.Tags{"name": c.cfg.Name},
		},
	}, nil
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected type %T for myState", v)
	}
}

func (c *Collector) Shutdown() {
	if c.client != nil {
		_ = c.client.Disconnect(context.Background())
		c.client = nil
	}
}

func (c *Collector) TickInterval() int { return 1 }
