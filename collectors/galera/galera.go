// Package galera samples Galera/MySQL wsrep cluster status via
// "SHOW GLOBAL STATUS LIKE 'wsrep_%'".
package galera

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/lukaspustina/rs-collector/config"
	"github.com/lukaspustina/rs-collector/models"
)

// Collector samples one MySQL/Galera node's wsrep status.
type Collector struct {
	cfg config.GaleraConfig
	id  models.Id
	db  *sql.DB
}

// New constructs a Collector for cfg. Init must be called before Collect.
func New(cfg config.GaleraConfig) *Collector {
	target := cfg.Socket
	if target == "" {
		target = cfg.Host
	}
	return &Collector{
		cfg: cfg,
		id:  models.Id(fmt.Sprintf("galera#%s@%s", cfg.User, target)),
	}
}

// CreateInstances builds zero or one Collector from the parsed config,
// mirroring collectors::galera::create_instances.
func CreateInstances(cfg *config.Config) []*Collector {
	if cfg.Galera == nil {
		return nil
	}
	return []*Collector{New(*cfg.Galera)}
}

func (c *Collector) Id() models.Id { return c.id }

func (c *Collector) Init() error {
	if c.db != nil {
		_ = c.db.Close()
	}
	dsn := c.dsn()
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("galera: open %s: %w", c.id, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("galera: ping %s: %w", c.id, err)
	}
	c.db = db
	return nil
}

func (c *Collector) dsn() string {
	auth := c.cfg.User
	if c.cfg.Password != "" {
		auth = fmt.Sprintf("%s:%s", c.cfg.User, c.cfg.Password)
	}
	if c.cfg.Socket != "" {
		return fmt.Sprintf("%s@unix(%s)/", auth, c.cfg.Socket)
	}
	return fmt.Sprintf("%s@tcp(%s)/", auth, c.cfg.Host)
}

func (c *Collector) Metadata() []models.Metadata {
	return []models.Metadata{
		{Metric: "galera.wsrep.protocol.version", Rate: models.RateGauge, Unit: "", Description: "wsrep_protocol_version"},
		{Metric: "galera.wsrep.cluster.status", Rate: models.RateGauge, Unit: "", Description: "0 = primary, 1 = non-primary"},
		{Metric: "galera.wsrep.evs.state", Rate: models.RateGauge, Unit: "", Description: "0 = operational, 1 = other"},
		{Metric: "galera.wsrep.connected", Rate: models.RateGauge, Unit: "", Description: "0 = ON, 1 = OFF"},
	}
}

func (c *Collector) Collect() ([]models.Sample, error) {
	rows, err := c.db.Query("SHOW GLOBAL STATUS LIKE 'wsrep_%'")
	if err != nil {
		return nil, fmt.Errorf("galera: query status: %w", err)
	}
	defer rows.Close()

	status := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("galera: scan status row: %w", err)
		}
		status[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("galera: iterate status rows: %w", err)
	}

	now := time.Now()
	var samples []models.Sample

	if v, ok := status["wsrep_protocol_version"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			samples = append(samples, models.Sample{Time: now, Metric: "galera.wsrep.protocol.version", Value: f, Tags: models.Tags{}})
		}
	}

	if v, ok := status["wsrep_cluster_status"]; ok {
		samples = append(samples, models.Sample{Time: now, Metric: "galera.wsrep.cluster.status", Value: clusterStatusValue(v), Tags: models.Tags{}})
	}

	if v, ok := status["wsrep_evs_state"]; ok {
		samples = append(samples, models.Sample{Time: now, Metric: "galera.wsrep.evs.state", Value: evsStateValue(v), Tags: models.Tags{}})
	}

	switch status["wsrep_connected"] {
	case "ON":
		samples = append(samples, models.Sample{Time: now, Metric: "galera.wsrep.connected", Value: 0, Tags: models.Tags{}})
	case "OFF":
		samples = append(samples, models.Sample{Time: now, Metric: "galera.wsrep.connected", Value: 1, Tags: models.Tags{}})
	case "":
		// Not reported by this server version; skip silently.
	default:
		return nil, fmt.Errorf("galera: unrecognized wsrep_connected value %q", status["wsrep_connected"])
	}

	return samples, nil
}

// clusterStatusValue collapses wsrep_cluster_status to 0 (primary) or 1
// (anything else). Sub-states beyond primary/non-primary are not
// distinguished.
func clusterStatusValue(v string) float64 {
	if strings.EqualFold(v, "primary") {
		return 0
	}
	return 1
}

// evsStateValue collapses wsrep_evs_state to 0 (operational) or 1 (anything
// else), using the same collapsing policy as cluster status.
func evsStateValue(v string) float64 {
	if strings.EqualFold(v, "operational") {
		return 0
	}
	return 1
}

func (c *Collector) Shutdown() {
	if c.db != nil {
		_ = c.db.Close()
		c.db = nil
	}
}

func (c *Collector) TickInterval() int { return 1 }
