// Command feedgen publishes synthetic location events for a fleet of moving
// objects, for exercising the geocached feed consumer.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/geocached/internal/feed"
	"github.com/mohammed-shakir/geocached/internal/geo"
	"github.com/mohammed-shakir/geocached/internal/objectid"
)

type Config struct {
	Brokers  string
	Topic    string
	Objects  int
	Interval time.Duration
	Duration time.Duration
	StepDeg  float64
	DeleteAt float64
	Seed     int64
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.Brokers, "brokers", "localhost:9092", "Comma separated Kafka brokers")
	flag.StringVar(&cfg.Topic, "topic", "object-locations", "Topic to publish to")
	flag.IntVar(&cfg.Objects, "objects", 100, "Number of moving objects")
	flag.DurationVar(&cfg.Interval, "interval", time.Second, "Time between fleet ticks")
	flag.DurationVar(&cfg.Duration, "duration", time.Minute, "How long to publish")
	flag.Float64Var(&cfg.StepDeg, "step", 0.0005, "Max per-tick movement in degrees")
	flag.Float64Var(&cfg.DeleteAt, "delete-prob", 0.01, "Per-tick probability an object is deleted and replaced")
	flag.Int64Var(&cfg.Seed, "seed", 1, "Random seed")
	flag.Parse()
	return cfg
}

var centers = []geo.Location{
	{Lat: 59.3293, Lon: 18.0686}, // Stockholm
	{Lat: 57.7089, Lon: 11.9746}, // Göteborg
	{Lat: 55.6050, Lon: 13.0038}, // Malmö
}

type walker struct {
	id  string
	loc geo.Location
}

type fleet struct {
	r       *rand.Rand
	ids     objectid.Generator
	step    float64
	delProb float64
	objs    []walker
	now     func() time.Time
}

func newFleet(n int, r *rand.Rand, ids objectid.Generator, step, delProb float64) *fleet {
	return &fleet{r: r, ids: ids, step: step, delProb: delProb, objs: make([]walker, n), now: time.Now}
}

// spawn returns the insert events that place every object for the first time.
func (f *fleet) spawn() []feed.Event {
	out := make([]feed.Event, 0, len(f.objs))
	for i := range f.objs {
		f.objs[i] = f.place()
		out = append(out, f.insert(f.objs[i]))
	}
	return out
}

// tick moves every object once. A deleted object is replaced by a new one.
func (f *fleet) tick() []feed.Event {
	out := make([]feed.Event, 0, len(f.objs))
	for i := range f.objs {
		w := &f.objs[i]
		if f.r.Float64() < f.delProb {
			out = append(out, feed.Event{Version: 1, Op: feed.OpDelete, ID: w.id, TS: f.now().UTC()})
			*w = f.place()
			out = append(out, f.insert(*w))
			continue
		}
		w.loc = clamp(geo.Location{
			Lat: w.loc.Lat + (f.r.Float64()*2-1)*f.step,
			Lon: w.loc.Lon + (f.r.Float64()*2-1)*f.step,
		})
		out = append(out, f.event(feed.OpMove, *w))
	}
	return out
}

func (f *fleet) place() walker {
	c := centers[f.r.Intn(len(centers))]
	return walker{
		id: f.ids.New(),
		loc: clamp(geo.Location{
			Lat: c.Lat + (f.r.Float64()*2-1)*0.05,
			Lon: c.Lon + (f.r.Float64()*2-1)*0.05,
		}),
	}
}

func (f *fleet) insert(w walker) feed.Event {
	ev := f.event(feed.OpInsert, w)
	ev.Payload, _ = json.Marshal(map[string]any{"kind": "vehicle", "spawned": ev.TS})
	return ev
}

func (f *fleet) event(op feed.Op, w walker) feed.Event {
	lat, lon := w.loc.Lat, w.loc.Lon
	return feed.Event{Version: 1, Op: op, ID: w.id, Lat: &lat, Lon: &lon, TS: f.now().UTC()}
}

func clamp(l geo.Location) geo.Location {
	l.Lat = min(max(l.Lat, geo.LatMin), geo.LatMax)
	l.Lon = min(max(l.Lon, geo.LonMin), geo.LonMax)
	return l
}

func publish(p sarama.SyncProducer, topic string, evs []feed.Event) error {
	msgs := make([]*sarama.ProducerMessage, 0, len(evs))
	for _, ev := range evs {
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		// keyed by id so every event for one object lands on one partition
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.StringEncoder(ev.ID),
			Value: sarama.ByteEncoder(b),
		})
	}
	if err := p.SendMessages(msgs); err != nil {
		return fmt.Errorf("send %d messages: %w", len(msgs), err)
	}
	return nil
}

func main() {
	cfg := loadConfig()

	pcfg := sarama.NewConfig()
	pcfg.Producer.Return.Successes = true
	pcfg.Producer.RequiredAcks = sarama.WaitForAll
	pcfg.Producer.Partitioner = sarama.NewHashPartitioner
	pcfg.Version = sarama.V2_5_0_0

	prod, err := sarama.NewSyncProducer(strings.Split(cfg.Brokers, ","), pcfg)
	if err != nil {
		log.Printf("producer create: %v", err)
		os.Exit(1)
	}
	defer func() { _ = prod.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	f := newFleet(cfg.Objects, rand.New(rand.NewSource(cfg.Seed)), objectid.UUID{}, cfg.StepDeg, cfg.DeleteAt)
	if err := publish(prod, cfg.Topic, f.spawn()); err != nil {
		log.Printf("spawn: %v", err)
		return
	}

	sent := cfg.Objects
	tk := time.NewTicker(cfg.Interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("feedgen: published %d events to %s", sent, cfg.Topic)
			return
		case <-tk.C:
			evs := f.tick()
			if err := publish(prod, cfg.Topic, evs); err != nil {
				log.Printf("tick: %v", err)
				continue
			}
			sent += len(evs)
		}
	}
}
