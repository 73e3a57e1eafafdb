// Package importer converts published MVP tables into the dataset JSON format.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// ErrNoPlayers is returned when a source holds no recognisable MVP rows
var ErrNoPlayers = errors.New("no MVP rows found")

type column int

const (
	colRank column = iota
	colPlayer
	colTeam
	colBatting
	colBowling
	colFielding
	colTotal
	colPhoto
)

// headerColumn maps a header cell to a column; ok is false for unrelated headers
func headerColumn(text string) (column, bool) {
	h := strings.ToLower(strings.Join(strings.Fields(text), " "))
	switch {
	case h == "rank" || h == "#" || h == "pos":
		return colRank, true
	case h == "player" || h == "name" || h == "player name":
		return colPlayer, true
	case h == "team":
		return colTeam, true
	case strings.HasPrefix(h, "bat"):
		return colBatting, true
	case strings.HasPrefix(h, "bowl"):
		return colBowling, true
	case strings.HasPrefix(h, "field"):
		return colFielding, true
	case strings.HasPrefix(h, "total") || h == "mvp":
		return colTotal, true
	case strings.HasPrefix(h, "photo") || h == "image":
		return colPhoto, true
	}
	return 0, false
}

// ParseHTML reads every table whose header names at least a player column
// and a total column. Columns are matched by header text, so their order
// and any extra columns do not matter.
func ParseHTML(r io.Reader) ([]models.PlayerRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var records []models.PlayerRecord
	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		cols := map[int]column{}
		table.Find("tr").First().Find("th, td").Each(func(j int, cell *goquery.Selection) {
			if c, ok := headerColumn(cell.Text()); ok {
				cols[j] = c
			}
		})
		if !hasColumn(cols, colPlayer) || !hasColumn(cols, colTotal) {
			logger.Debug("Importer: skipping table without MVP headers", "table", i)
			return
		}

		table.Find("tr").Slice(1, goquery.ToEnd).Each(func(rowIdx int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() == 0 {
				return
			}
			var p models.PlayerRecord
			cells.Each(func(j int, cell *goquery.Selection) {
				c, ok := cols[j]
				if !ok {
					return
				}
				text := strings.TrimSpace(cell.Text())
				switch c {
				case colRank:
					p.Rank, _ = strconv.Atoi(text)
				case colPlayer:
					p.Name = text
					if src, ok := cell.Find("img").Attr("src"); ok && p.PhotoURL == "" {
						p.PhotoURL = src
					}
				case colTeam:
					p.Team = text
				case colBatting:
					p.BattingMVP = parseNumber(text)
				case colBowling:
					p.BowlingMVP = parseNumber(text)
				case colFielding:
					p.FieldingMVP = parseNumber(text)
				case colTotal:
					p.TotalMVP = parseNumber(text)
				case colPhoto:
					if src, ok := cell.Find("img").Attr("src"); ok {
						p.PhotoURL = src
					} else if text != "" {
						p.PhotoURL = text
					}
				}
			})
			if p.Name == "" {
				return
			}
			records = append(records, p)
		})
	})

	if len(records) == 0 {
		return nil, ErrNoPlayers
	}
	return Normalize(records), nil
}

func hasColumn(cols map[int]column, want column) bool {
	for _, c := range cols {
		if c == want {
			return true
		}
	}
	return false
}

// ReadPDFText extracts the plain text of a PDF file
func ReadPDFText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return "", fmt.Errorf("error opening PDF: %w", err)
	}
	defer f.Close()

	plainText, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("error extracting text from PDF: %w", err)
	}

	b, err := io.ReadAll(plainText)
	if err != nil {
		return "", fmt.Errorf("error reading plain text from PDF: %w", err)
	}
	return string(b), nil
}

// Columns in text exports are separated by tabs, pipes or runs of two or more spaces
var textSeparator = regexp.MustCompile(`\t+|\s*\|\s*|\s{2,}`)

// ParseText reads one player per line in the column order
// rank, player, team, batting, bowling, fielding, total[, photo url].
// Lines that do not fit are skipped.
func ParseText(text string) ([]models.PlayerRecord, error) {
	var records []models.PlayerRecord
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := textSeparator.Split(line, -1)
		if len(fields) < 7 {
			continue
		}
		rank, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		nums := make([]float64, 4)
		valid := true
		for i := range nums {
			v, err := strconv.ParseFloat(sanitizeNumber(fields[3+i]), 64)
			if err != nil {
				valid = false
				break
			}
			nums[i] = v
		}
		if !valid {
			logger.Debug("Importer: skipping malformed line", "line", n+1)
			continue
		}
		p := models.PlayerRecord{
			Rank:        rank,
			Name:        fields[1],
			Team:        fields[2],
			BattingMVP:  nums[0],
			BowlingMVP:  nums[1],
			FieldingMVP: nums[2],
			TotalMVP:    nums[3],
		}
		if len(fields) > 7 {
			p.PhotoURL = fields[7]
		}
		records = append(records, p)
	}

	if len(records) == 0 {
		return nil, ErrNoPlayers
	}
	return Normalize(records), nil
}

// Normalize orders records by rank. Rows without a usable rank, or whose
// rank is already taken, are numbered after the highest rank seen.
func Normalize(records []models.PlayerRecord) []models.PlayerRecord {
	out := make([]models.PlayerRecord, 0, len(records))
	seen := map[int]bool{}
	var unranked []models.PlayerRecord
	maxRank := 0
	for _, p := range records {
		if p.Rank <= 0 || seen[p.Rank] {
			unranked = append(unranked, p)
			continue
		}
		seen[p.Rank] = true
		if p.Rank > maxRank {
			maxRank = p.Rank
		}
		out = append(out, p)
	}
	for _, p := range unranked {
		maxRank++
		p.Rank = maxRank
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// WriteJSON writes records in the dataset file format
func WriteJSON(w io.Writer, records []models.PlayerRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func parseNumber(s string) float64 {
	v, _ := strconv.ParseFloat(sanitizeNumber(s), 64)
	return v
}

// sanitizeNumber drops thousands separators and stray whitespace
func sanitizeNumber(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
}

// FetchHTML downloads a league page for ParseHTML
func FetchHTML(ctx context.Context, client *http.Client, url string) ([]models.PlayerRecord, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-200 status code: %d %s", resp.StatusCode, resp.Status)
	}
	return ParseHTML(resp.Body)
}
