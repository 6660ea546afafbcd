// Package roster seeds the client repository from vCard exports,
// either a local .vcf file or a CardDAV/WebDAV collection URL.
package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/tartampluch/go-congrats/internal/client"
	"github.com/tartampluch/go-congrats/internal/config"
	"github.com/tartampluch/go-congrats/internal/engine"
)

// Source locates a vCard stream. Location is a file path or an http(s) URL.
type Source struct {
	Location string
	User     string
	Pass     string
}

// IsRemote reports whether the source must be downloaded.
func (s Source) IsRemote() bool {
	return strings.HasPrefix(s.Location, config.SchemeHTTP+"://") ||
		strings.HasPrefix(s.Location, config.SchemeHTTPS+"://")
}

// Result counts what an import did.
type Result struct {
	Processed int `json:"processed"`
	Imported  int `json:"imported"`
	Skipped   int `json:"skipped"`
}

// Importer turns vCards into client records.
type Importer struct {
	Repo    client.Repository
	Fetcher Fetcher
	Clock   engine.Clock
}

// NewImporter creates an Importer with an HTTP fetcher and the real clock.
func NewImporter(repo client.Repository) *Importer {
	return &Importer{Repo: repo, Fetcher: NewHTTPFetcher(), Clock: engine.RealClock{}}
}

// Import reads every card of src and creates one client per valid card.
// Malformed cards, cards without email or birthday, and duplicate emails are skipped.
func (im *Importer) Import(ctx context.Context, src Source) (Result, error) {
	start := time.Now()
	log := slog.With(config.LogKeyComponent, config.CompRoster)
	log.InfoContext(ctx, config.MsgImportStarted, config.LogKeySource, Redact(src.Location))

	reader, err := im.open(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%s: %w", config.ErrVCardParse, err)
	}
	defer func() { _ = reader.Close() }()

	var res Result
	decoder := vcard.NewDecoder(reader)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The decoder cannot resynchronise after a syntax error.
			log.Warn(config.MsgSkippedCard, config.LogKeyError, err)
			res.Skipped++
			break
		}
		res.Processed++

		c, ok := im.toClient(card)
		if !ok {
			res.Skipped++
			continue
		}

		switch err := im.Repo.Create(ctx, &c); {
		case errors.Is(err, client.ErrDuplicateEmail):
			log.Debug(config.MsgSkippedDup, config.LogKeyEmail, config.RedactEmail(c.Email))
			res.Skipped++
		case err != nil:
			return res, err
		default:
			res.Imported++
		}
	}

	log.Info(config.MsgImportDone,
		slog.Group(config.LogKeyStats,
			slog.Int(config.LogKeyProcessed, res.Processed),
			slog.Int(config.LogKeyImported, res.Imported),
			slog.Int(config.LogKeySkipped, res.Skipped),
		),
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (im *Importer) open(ctx context.Context, src Source) (io.ReadCloser, error) {
	if src.Location == "" {
		return nil, errors.New(config.ErrSourceEmpty)
	}
	if !src.IsRemote() {
		return os.Open(src.Location)
	}
	if im.Fetcher == nil {
		return nil, errors.New(config.ErrFetcherMissing)
	}
	return im.Fetcher.Fetch(ctx, src.Location, src.User, src.Pass)
}

// toClient maps a card onto a client. Name strategy: N (structured) > FN > fallback.
func (im *Importer) toClient(card vcard.Card) (client.Client, bool) {
	bday := card.Value(config.VCardBDAY)
	if bday == "" {
		return client.Client{}, false
	}
	birthday, err := parseDate(bday)
	if err != nil {
		slog.Debug(config.MsgSkippedDate,
			config.LogKeyComponent, config.CompRoster,
			config.LogKeyValue, bday)
		return client.Client{}, false
	}

	email := card.PreferredValue(config.VCardEmail)
	if email == "" {
		slog.Debug(config.MsgSkippedNoEmail, config.LogKeyComponent, config.CompRoster)
		return client.Client{}, false
	}

	first, last := cardName(card)
	c := client.Client{
		FirstName:   first,
		LastName:    last,
		Email:       email,
		Phone:       card.PreferredValue(config.VCardTel),
		CompanyName: firstComponent(card.Value(config.VCardOrg)),
		Position:    card.Value(config.VCardTitle),
		Birthday:    birthday,
	}
	if cats := card.Categories(); len(cats) > 0 {
		c.Segment = cats[0]
	}

	if err := c.Validate(im.Clock.Now()); err != nil {
		slog.Debug(config.MsgSkippedCard,
			config.LogKeyComponent, config.CompRoster,
			config.LogKeyError, err)
		return client.Client{}, false
	}
	return c, true
}

func cardName(card vcard.Card) (string, string) {
	if n := card.Name(); n != nil && (n.GivenName != "" || n.FamilyName != "") {
		return n.GivenName, n.FamilyName
	}
	fn := strings.TrimSpace(card.PreferredValue(config.VCardFN))
	if fn == "" {
		return config.FallbackName, config.FallbackName
	}
	first, last, found := strings.Cut(fn, " ")
	if !found {
		return first, first
	}
	return first, strings.TrimSpace(last)
}

// firstComponent returns the organization name of a structured ORG value.
func firstComponent(v string) string {
	name, _, _ := strings.Cut(v, ";")
	return name
}

// parseDate handles the vCard BDAY formats. Year-less values (--MM-DD)
// yield a Date whose year is unknown.
func parseDate(value string) (client.Date, error) {
	formatsWithYear := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, f := range formatsWithYear {
		if t, err := time.Parse(f, value); err == nil {
			return client.NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}

	formatsWithoutYear := []string{config.DateFormatNoYearD, config.DateFormatNoYearB}
	for _, f := range formatsWithoutYear {
		if t, err := time.Parse(f, value); err == nil {
			return client.NewYearlessDate(t.Month(), t.Day()), nil
		}
	}

	return client.Date{}, errors.New(config.ErrDateParse)
}
