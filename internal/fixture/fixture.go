// Package fixture implements an order source backed by a YAML file, used for
// local development and tests without a live warehouse.
package fixture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"time"

	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/jekabolt/delivery-analytics/internal/metrics"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Path string `mapstructure:"path"`
}

type fileChannel struct {
	Ref     string `yaml:"ref"`
	Channel string `yaml:"channel"`
}

type fileOrder struct {
	Customer   string `yaml:"customer"`
	Date       string `yaml:"date"`
	Company    int    `yaml:"company"`
	Brand      int    `yaml:"brand"`
	Channel    string `yaml:"channel"`
	Total      string `yaml:"total"`
	Promotions string `yaml:"promotions"`
	Refunds    string `yaml:"refunds"`
	New        bool   `yaml:"new"`
}

type file struct {
	Channels []fileChannel `yaml:"channels"`
	Orders   []fileOrder   `yaml:"orders"`
	Users    []fileUser    `yaml:"users"`
}

// Source serves orders from memory with the same filter semantics as the
// warehouse store.
type Source struct {
	channels []entity.ChannelMapping
	facts    []entity.OrderFact
	loc      *time.Location
	users    *userList
}

// Load reads a fixture file.
func Load(path string, loc *time.Location) (*Source, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read fixture file: %w", err)
	}
	return Parse(bytes.NewReader(b), loc)
}

// Parse decodes fixture YAML. Channels default to the identity mapping of the
// known logical channels when the file has none.
func Parse(r io.Reader, loc *time.Location) (*Source, error) {
	if loc == nil {
		loc = time.UTC
	}
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("can't decode fixture: %w", err)
	}

	s := &Source{loc: loc, users: &userList{}}
	for _, c := range f.Channels {
		if c.Ref == "" || c.Channel == "" {
			return nil, fmt.Errorf("channel mapping needs ref and channel: %+v", c)
		}
		s.channels = append(s.channels, entity.ChannelMapping{Ref: c.Ref, Channel: entity.ChannelId(c.Channel)})
	}
	if len(s.channels) == 0 {
		for _, ch := range entity.Channels {
			s.channels = append(s.channels, entity.ChannelMapping{Ref: string(ch), Channel: ch})
		}
	}

	for i, o := range f.Orders {
		of, err := o.fact(loc)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		of.ID = int64(i + 1)
		s.facts = append(s.facts, of)
	}
	for i, u := range f.Users {
		pu, err := u.user()
		if err != nil {
			return nil, fmt.Errorf("user %d: %w", i, err)
		}
		if _, err := s.users.AddUser(context.Background(), pu); err != nil {
			return nil, fmt.Errorf("user %d: %w", i, err)
		}
	}
	sort.SliceStable(s.facts, func(i, j int) bool {
		return s.facts[i].OrderDate.Before(s.facts[j].OrderDate)
	})
	return s, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %s", s)
	}
	return d, nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(entity.DateLayout, s, loc)
}

func (o fileOrder) fact(loc *time.Location) (entity.OrderFact, error) {
	if o.Customer == "" {
		return entity.OrderFact{}, fmt.Errorf("customer is required")
	}
	if o.Channel == "" {
		return entity.OrderFact{}, fmt.Errorf("channel is required")
	}
	date, err := parseDate(o.Date, loc)
	if err != nil {
		return entity.OrderFact{}, fmt.Errorf("bad date %q: %w", o.Date, err)
	}
	total, err := parseAmount(o.Total)
	if err != nil {
		return entity.OrderFact{}, fmt.Errorf("bad total: %w", err)
	}
	promotions, err := parseAmount(o.Promotions)
	if err != nil {
		return entity.OrderFact{}, fmt.Errorf("bad promotions: %w", err)
	}
	refunds, err := parseAmount(o.Refunds)
	if err != nil {
		return entity.OrderFact{}, fmt.Errorf("bad refunds: %w", err)
	}
	return entity.OrderFact{
		CompanyId:     o.Company,
		BrandId:       o.Brand,
		ChannelRef:    o.Channel,
		CustomerId:    o.Customer,
		OrderDate:     date,
		TotalPrice:    total,
		Promotions:    promotions,
		Refunds:       refunds,
		IsNewCustomer: o.New,
	}, nil
}

// Channels returns the channel catalog of the fixture.
func (s *Source) Channels() []entity.ChannelMapping {
	return slices.Clone(s.channels)
}

// Facts returns every order fact of the fixture ordered by date.
func (s *Source) Facts() []entity.OrderFact {
	return slices.Clone(s.facts)
}

// FetchCustomerOrders filters the fixture orders.
func (s *Source) FetchCustomerOrders(ctx context.Context, f entity.OrderFilters) ([]entity.Order, error) {
	r, err := f.Range(s.loc)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logical := make(map[string]entity.ChannelId, len(s.channels))
	for _, m := range s.channels {
		logical[m.Ref] = m.Channel
	}
	refs, filterChannels := entity.ChannelRefs(s.channels, f.ChannelIds)

	orders := []entity.Order{}
	for _, of := range s.facts {
		if of.OrderDate.Before(r.From) || !of.OrderDate.Before(r.To) {
			continue
		}
		if len(f.CompanyIds) > 0 && !slices.Contains(f.CompanyIds, of.CompanyId) {
			continue
		}
		if len(f.BrandIds) > 0 && !slices.Contains(f.BrandIds, of.BrandId) {
			continue
		}
		if filterChannels && !slices.Contains(refs, of.ChannelRef) {
			continue
		}
		ch, ok := logical[of.ChannelRef]
		if !ok {
			ch = entity.ChannelId(of.ChannelRef)
		}
		orders = append(orders, entity.Order{
			CustomerId:    of.CustomerId,
			OrderDate:     of.OrderDate,
			TotalPrice:    of.TotalPrice,
			Promotions:    of.Promotions,
			Refunds:       of.Refunds,
			IsNewCustomer: of.IsNewCustomer,
			ChannelId:     ch,
			CompanyId:     of.CompanyId,
			BrandId:       of.BrandId,
			ChannelRef:    of.ChannelRef,
		})
	}
	metrics.OrderPagesFetched.WithLabelValues("fixture").Inc()
	metrics.OrdersFetched.WithLabelValues("fixture").Add(float64(len(orders)))
	return orders, nil
}
