package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/jekabolt/delivery-analytics/app"
	"github.com/jekabolt/delivery-analytics/internal/analytics"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	"github.com/jekabolt/delivery-analytics/internal/form"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	reportFrom        string
	reportTo          string
	reportCompanies   []int
	reportBrands      []int
	reportChannels    []string
	reportGranularity string
	reportLimit       int
	reportLang        string

	reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Print a customer analytics summary for a date range",
		RunE:  report,
	}
)

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFrom, "from", "", "first day, YYYY-MM-DD")
	f.StringVar(&reportTo, "to", "", "last day, YYYY-MM-DD")
	f.IntSliceVar(&reportCompanies, "company", nil, "company ids")
	f.IntSliceVar(&reportBrands, "brand", nil, "brand ids")
	f.StringSliceVar(&reportChannels, "channel", nil, "channels: glovo, ubereats, justeat")
	f.StringVar(&reportGranularity, "granularity", "month", "cohort granularity: week or month")
	f.IntVar(&reportLimit, "limit", 10, "churn risk entries to list")
	f.StringVar(&reportLang, "lang", "en", "language of number formatting, e.g. es")
	_ = reportCmd.MarkFlagRequired("from")
	_ = reportCmd.MarkFlagRequired("to")
}

func reportQuery() (*form.AnalyticsQuery, error) {
	q := url.Values{}
	q.Set("start_date", reportFrom)
	q.Set("end_date", reportTo)
	q.Set("granularity", reportGranularity)
	q.Set("limit", strconv.Itoa(reportLimit))
	for _, id := range reportCompanies {
		q.Add("company_id", strconv.Itoa(id))
	}
	for _, id := range reportBrands {
		q.Add("brand_id", strconv.Itoa(id))
	}
	for _, ch := range reportChannels {
		q.Add("channel", ch)
	}
	aq, err := form.ParseAnalyticsQuery(q)
	if err != nil {
		return nil, err
	}
	if err := aq.Validate(); err != nil {
		return nil, err
	}
	return aq, nil
}

func report(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	aq, err := reportQuery()
	if err != nil {
		return err
	}
	lang, err := language.Parse(reportLang)
	if err != nil {
		return fmt.Errorf("bad language %q: %w", reportLang, err)
	}

	loc, err := cfg.Analytics.Location()
	if err != nil {
		return err
	}
	src, err := app.OpenSources(ctx, cfg, loc)
	if err != nil {
		return err
	}
	defer src.Close()

	svc, err := analytics.New(&cfg.Analytics, src.Orders)
	if err != nil {
		return err
	}
	snap, err := svc.Snapshot(ctx, aq.Filters(), aq.CohortGranularity(), aq.Limit)
	if err != nil {
		return err
	}
	writeReport(cmd.OutOrStdout(), message.NewPrinter(lang), snap)
	return nil
}

func writeReport(w io.Writer, p *message.Printer, s *entity.AnalyticsSnapshot) {
	title := cases.Title(language.English)
	c := s.Customers

	p.Fprintf(w, "Customer report %s to %s\n", s.Filters.StartDate, s.Filters.EndDate)
	p.Fprintf(w, "%s\n\n", strings.Repeat("=", 40))

	p.Fprintf(w, "Customers        %d (%d new, %d returning)\n", c.TotalCustomers, c.NewCustomers, c.ReturningCustomers)
	p.Fprintf(w, "Orders           %d\n", c.TotalOrders)
	p.Fprintf(w, "Revenue          %.2f\n", c.TotalRevenue.InexactFloat64())
	p.Fprintf(w, "Promotions       %.2f\n", c.TotalPromotions.InexactFloat64())
	p.Fprintf(w, "Refunds          %.2f\n", c.TotalRefunds.InexactFloat64())
	p.Fprintf(w, "Average ticket   %.2f\n", c.AvgTicket.InexactFloat64())
	p.Fprintf(w, "Orders/customer  %.2f\n", c.AvgOrdersPerCustomer)
	p.Fprintf(w, "Frequency (days) %.1f\n", c.AvgFrequencyDays)
	p.Fprintf(w, "Retention        %.1f%%\n\n", c.RetentionRate)

	if len(s.Cohorts) > 0 {
		p.Fprintf(w, "Cohorts\n")
		for _, co := range s.Cohorts {
			cells := make([]string, len(co.Retention))
			for i, r := range co.Retention {
				cells[i] = p.Sprintf("%5.1f", r)
			}
			p.Fprintf(w, "  %-9s %6d  %s\n", co.Period, co.Size, strings.Join(cells, " "))
		}
		p.Fprintf(w, "\n")
	}

	d := s.Distribution
	p.Fprintf(w, "Spend per customer: mean %.2f, median %.2f, p90 %.2f, gini %.2f\n", d.Mean, d.Median, d.P90, d.Concentration.Gini)
	for _, seg := range d.Segments {
		p.Fprintf(w, "  %-13s %6d  %.2f\n", title.String(strings.ReplaceAll(string(seg.Segment), "_", " ")), seg.Count, seg.Revenue)
	}
	p.Fprintf(w, "\n")

	m := s.MultiPlatform
	p.Fprintf(w, "Platforms: glovo only %d, ubereats only %d, justeat only %d, multi-platform %d (%.1f%%)\n\n",
		m.GlovoOnly, m.UberEatsOnly, m.JustEatOnly, m.MultiPlatform, m.MultiPlatformPct)

	if len(s.ChurnRisk) == 0 {
		p.Fprintf(w, "No customers at risk of churning\n")
		return
	}
	p.Fprintf(w, "Churn risk\n")
	for _, e := range s.ChurnRisk {
		p.Fprintf(w, "  %-20s %-6s score %.2f, %d orders, last %s (%d days ago)\n",
			e.CustomerId, title.String(string(e.Risk)), e.RiskScore, e.OrderCount,
			e.LastOrderDate.Format(entity.DateLayout), e.DaysSinceLastOrder)
	}
}
