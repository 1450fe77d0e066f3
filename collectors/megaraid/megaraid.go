// Package megaraid samples physical disk health counters from a MegaRAID
// controller via MegaCli64 -LdPdInfo.
package megaraid

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lukaspustina/rs-collector/config"
	"github.com/lukaspustina/rs-collector/models"
)

const (
	metricPrefix        = "hw.storage.drivestats"
	defaultBinary       = "/opt/MegaRAID/MegaCli/MegaCli64"
	paramLdPdInfo       = "-LdPdInfo"
	paramAllAdapters    = "ALL"
	cmdTimeout          = 30 * time.Second
)

// Collector samples every physical disk visible to a MegaRAID adapter.
type Collector struct {
	id           models.Id
	tickInterval int
	command      string
	adapter      string
}

// New constructs a Collector from cfg, applying the same defaults as
// collectors::megaraid::create_instances.
func New(cfg config.MegaraidConfig) *Collector {
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = 1
	}
	cmd := cfg.MegacliCommand
	if cmd == "" {
		cmd = defaultBinary
	}
	adapter := paramAllAdapters
	if cfg.Adapter != 0 {
		adapter = strconv.Itoa(cfg.Adapter)
	}
	return &Collector{
		id:           "megaraid#0",
		tickInterval: tick,
		command:      cmd,
		adapter:      adapter,
	}
}

// CreateInstances builds zero or one Collector, mirroring
// collectors::megaraid::create_instances.
func CreateInstances(cfg *config.Config) []*Collector {
	if cfg.Megaraid == nil {
		return nil
	}
	return []*Collector{New(*cfg.Megaraid)}
}

func (c *Collector) Id() models.Id { return c.id }

// Init verifies the configured MegaCli binary exists and is executable.
func (c *Collector) Init() error {
	info, err := os.Stat(c.command)
	if err != nil {
		return fmt.Errorf("megaraid: configured MegaCli command not found: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("megaraid: configured MegaCli command %q is a directory", c.command)
	}
	if info.Mode()&0o111 == 0 {
		return fmt.Errorf("megaraid: configured MegaCli command %q is not executable", c.command)
	}
	return nil
}

func (c *Collector) Metadata() []models.Metadata {
	return []models.Metadata{
		{
			Metric: metricPrefix + ".mediaerrors", Rate: models.RateGauge, Unit: "",
			Description: "Number of media errors reported for the device by the RAID controller. Should ideally be 0, but need not signify a problem on its own unless it keeps growing or if multiple disks in the same array have some.",
		},
		{
			Metric: metricPrefix + ".othererrors", Rate: models.RateGauge, Unit: "",
			Description: "Number of other errors reported for the device by the RAID controller. Should ideally be 0.",
		},
		{
			Metric: metricPrefix + ".predfailerrors", Rate: models.RateGauge, Unit: "",
			Description: "Number of errors that are considered critical by the RAID controller. Must be 0. Cause for immediate drive replacement.",
		},
		{
			Metric: metricPrefix + ".smartflag", Rate: models.RateGauge, Unit: "Enum",
			Description: "0: The drive's S.M.A.R.T. considers it ok. 1: The drive has raised an alert. Cause for drive replacement.",
		},
		{
			Metric: metricPrefix + ".firmwarestate", Rate: models.RateGauge, Unit: "Enum",
			Description: "Defined by MegaCli. 0: Online // 1: Online, Spun Down // 2: Hotspare, Spun up // 3: Hotspare, Spun down // 4: Unconfigured(good) // 5: Unconfigured(good), Spun down // 6: Unconfigured(bad) // 7: Rebuild // 8: not Online // 9: Failed // 10: None",
		},
		{
			Metric: metricPrefix + ".predfaileventno", Rate: models.RateCounter, Unit: "",
			Description: "Sequence number of the most recent recorded predictive failure event. It is unclear if this resets to 0 for new drives.",
		},
	}
}

func (c *Collector) Collect() ([]models.Sample, error) {
	pdinfos, err := c.getLdPdInfo()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var samples []models.Sample
	for _, pd := range pdinfos {
		samples = append(samples, pd.toSamples(now)...)
	}
	return samples, nil
}

func (c *Collector) Shutdown() {}

func (c *Collector) TickInterval() int { return c.tickInterval }

// ─────────────────────────────────────────────────────────────────────────────
// MegaCli output parsing
// ─────────────────────────────────────────────────────────────────────────────

type pdInfo struct {
	enclosureID           *int
	slotNumber            *int
	mediaErrors           *int
	otherErrors           *int
	predictiveFailErrors  *int
	lastPredFailEventSeq  *int
	smartFlag             *bool
	manufacturer          string
	model                 string
	serialNumber          string
	firmwareState         *int
}

var (
	reEnclosureID   = regexp.MustCompile(`^Enclosure Device ID: (\d+)`)
	reSlotNumber    = regexp.MustCompile(`^Slot Number: (\d+)`)
	reMediaErrors   = regexp.MustCompile(`^Media Error Count: (\d+)`)
	reOtherErrors   = regexp.MustCompile(`^Other Error Count: (\d+)`)
	rePredFail      = regexp.MustCompile(`^Predictive Failure Count: (\d+)`)
	rePredFailSeq   = regexp.MustCompile(`^Last Predictive Failure Event Seq Number: (\d+)`)
	reSmartAlert    = regexp.MustCompile(`^Drive has flagged a S\.M\.A\.R\.T alert : (\w+)`)
	reInquiryData   = regexp.MustCompile(`^Inquiry Data: (.+)`)
	reFirmwareState = regexp.MustCompile(`^Firmware state: (.+)`)
)

var firmwareStates = map[string]int{
	"Online":                         0,
	"Online, Spun Up":                0,
	"Online, Spun Down":              1,
	"Hotspare, Spun up":              2,
	"Hotspare, Spun down":            3,
	"Unconfigured(good)":             4,
	"Unconfigured(good), Spun down":  5,
	"Unconfigured(bad)":              6,
	"Rebuild":                        7,
	"not Online":                     8,
	"Failed":                         9,
	"None":                           10,
}

func (c *Collector) getLdPdInfo() ([]pdInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	args := []string{paramLdPdInfo, "-a" + c.adapter, "-noLog"}
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, c.command, args...)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("megaraid: %s %s: %w", c.command, strings.Join(args, " "), err)
	}

	lines := strings.Split(strings.TrimRight(stdout.String(), "\n"), "\n")
	if len(lines) == 0 || (len(lines) == 1 && lines[0] == "") {
		return nil, fmt.Errorf("megaraid: empty MegaCli output")
	}

	var pdinfos []pdInfo
	var cur *pdInfo

	flush := func() {
		if cur != nil {
			pdinfos = append(pdinfos, *cur)
		}
	}

	for _, line := range lines {
		if m := reEnclosureID.FindStringSubmatch(line); m != nil {
			flush()
			cur = &pdInfo{}
			if n, err := strconv.Atoi(m[1]); err == nil {
				cur.enclosureID = &n
			}
			continue
		}
		if cur == nil {
			continue
		}
		switch {
		case matchInt(reSlotNumber, line, &cur.slotNumber):
		case matchInt(reMediaErrors, line, &cur.mediaErrors):
		case matchInt(reOtherErrors, line, &cur.otherErrors):
		case matchInt(rePredFail, line, &cur.predictiveFailErrors):
		case matchInt(rePredFailSeq, line, &cur.lastPredFailEventSeq):
		default:
			if m := reSmartAlert.FindStringSubmatch(line); m != nil {
				b := strings.EqualFold(m[1], "yes")
				cur.smartFlag = &b
			} else if m := reFirmwareState.FindStringSubmatch(line); m != nil {
				if state, ok := firmwareStates[m[1]]; ok {
					cur.firmwareState = &state
				}
			} else if m := reInquiryData.FindStringSubmatch(line); m != nil {
				if manu, model, serial, ok := parseInquiryData(m[1]); ok {
					cur.manufacturer = manu
					cur.model = model
					cur.serialNumber = serial
				}
			}
		}
	}
	flush()

	return pdinfos, nil
}

func matchInt(re *regexp.Regexp, line string, dst **int) bool {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	if n, err := strconv.Atoi(m[1]); err == nil {
		*dst = &n
	}
	return true
}

// parseInquiryData handles the normal "MANUFACTURER MODEL SERIAL" triple and
// the Intel special case, where manufacturer and serial are munged together
// without whitespace as "<serial>INTEL".
func parseInquiryData(raw string) (manufacturer, model, serial string, ok bool) {
	parts := strings.Fields(raw)
	const intel = "INTEL"
	switch len(parts) {
	case 2, 3:
		if strings.HasSuffix(parts[0], intel) {
			return "INTEL", parts[1], parts[0][:len(parts[0])-len(intel)], true
		}
		if len(parts) == 2 {
			return "", "", "", false
		}
		return parts[0], parts[1], parts[2], true
	default:
		return "", "", "", false
	}
}

func (pd pdInfo) toSamples(now time.Time) []models.Sample {
	tags := models.Tags{}
	if pd.slotNumber != nil {
		tags["slot_number"] = strconv.Itoa(*pd.slotNumber)
	}
	if pd.enclosureID != nil {
		tags["enclosure_id"] = strconv.Itoa(*pd.enclosureID)
	}
	if pd.serialNumber != "" {
		tags["serial_number"] = pd.serialNumber
	}
	if pd.model != "" {
		tags["model"] = pd.model
	}
	if pd.manufacturer != "" {
		tags["manufacturer"] = pd.manufacturer
	}

	var samples []models.Sample
	add := func(metric string, v *int) {
		if v != nil {
			samples = append(samples, models.Sample{Time: now, Metric: metric, Value: float64(*v), Tags: tags.Clone()})
		}
	}
	add(metricPrefix+".mediaerrors", pd.mediaErrors)
	add(metricPrefix+".othererrors", pd.otherErrors)
	add(metricPrefix+".predfailerrors", pd.predictiveFailErrors)
	if pd.smartFlag != nil {
		v := 0
		if *pd.smartFlag {
			v = 1
		}
		samples = append(samples, models.Sample{Time: now, Metric: metricPrefix + ".smartflag", Value: float64(v), Tags: tags.Clone()})
	}
	add(metricPrefix+".firmwarestate", pd.firmwareState)
	add(metricPrefix+".predfaileventno", pd.lastPredFailEventSeq)

	return samples
}
