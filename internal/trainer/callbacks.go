package trainer

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/nampluskr/govae/internal/opt"
)

// Callback defines the interface for training callbacks.
type Callback interface {
	OnTrainBegin(t *Trainer)
	OnTrainEnd(t *Trainer)
	OnEpochEnd(epoch int, logs map[string]float64, t *Trainer)
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(t *Trainer)                              {}
func (c BaseCallback) OnTrainEnd(t *Trainer)                                {}
func (c BaseCallback) OnEpochEnd(epoch int, logs map[string]float64, t *Trainer) {}

// SchedulerCallback is a callback that wraps a learning rate scheduler.
type SchedulerCallback struct {
	BaseCallback
	scheduler opt.Scheduler
	monitor   string
}

// NewSchedulerCallback steps the scheduler after every epoch, feeding it the
// monitored log value (defaults to "loss").
func NewSchedulerCallback(scheduler opt.Scheduler, monitor string) *SchedulerCallback {
	if monitor == "" {
		monitor = "loss"
	}
	return &SchedulerCallback{scheduler: scheduler, monitor: monitor}
}

func (c *SchedulerCallback) OnEpochEnd(epoch int, logs map[string]float64, t *Trainer) {
	c.scheduler.Step()
	c.scheduler.StepWithLoss(logs[c.monitor])
}

// EarlyStopping stops training when a monitored metric has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64
	Monitor   string // log key to watch, "loss" by default

	bestLoss     float64
	numBadEpochs int
	Stopped      bool
}

// NewEarlyStopping creates an EarlyStopping callback watching the given key.
func NewEarlyStopping(monitor string, patience int, threshold float64) *EarlyStopping {
	if monitor == "" {
		monitor = "loss"
	}
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		Monitor:   monitor,
		bestLoss:  math.MaxFloat64,
	}
}

func (c *EarlyStopping) OnEpochEnd(epoch int, logs map[string]float64, t *Trainer) {
	value, ok := logs[c.Monitor]
	if !ok {
		return
	}
	if value < c.bestLoss-c.Threshold {
		c.bestLoss = value
		c.numBadEpochs = 0
	} else {
		c.numBadEpochs++
	}

	if c.numBadEpochs >= c.Patience {
		fmt.Printf("\nEarly stopping at epoch %d: %s %.6f did not improve for %d epochs\n",
			epoch, c.Monitor, value, c.Patience)
		c.Stopped = true
		t.Stop()
	}
}

// CSVLogger logs per-epoch metrics to a CSV file. The column set is fixed
// from the first epoch's log keys, sorted for a stable header.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool

	file    *os.File
	writer  *csv.Writer
	columns []string
	start   time.Time
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
	}
}

func (c *CSVLogger) OnTrainBegin(t *Trainer) {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0644)
	if err != nil {
		fmt.Printf("CSVLogger: failed to open file %s: %v\n", c.Filename, err)
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.columns = nil
	c.start = time.Now()
}

func (c *CSVLogger) OnEpochEnd(epoch int, logs map[string]float64, t *Trainer) {
	if c.writer == nil {
		return
	}

	if c.columns == nil {
		for k := range logs {
			c.columns = append(c.columns, k)
		}
		sort.Strings(c.columns)

		// Skip the header when appending to a non-empty file.
		writeHeader := true
		if c.Append {
			if info, err := c.file.Stat(); err == nil && info.Size() > 0 {
				writeHeader = false
			}
		}
		if writeHeader {
			header := append([]string{"epoch"}, c.columns...)
			header = append(header, "time_seconds")
			c.writer.Write(header)
			c.writer.Flush()
		}
	}

	record := []string{strconv.Itoa(epoch)}
	for _, k := range c.columns {
		record = append(record, fmt.Sprintf("%.6f", logs[k]))
	}
	record = append(record, fmt.Sprintf("%.2f", time.Since(c.start).Seconds()))

	if err := c.writer.Write(record); err != nil {
		fmt.Printf("CSVLogger: failed to write record: %v\n", err)
	}
	c.writer.Flush()
}

func (c *CSVLogger) OnTrainEnd(t *Trainer) {
	if c.file != nil {
		c.writer.Flush()
		c.file.Close()
		c.file = nil
		c.writer = nil
	}
}
