package reader

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dvloznov/statement-normalizer/internal/sheet"
)

const maxColspan = 64

// readHTML reads every <table> as one sheet, in document order. Cells are
// strings; <br> becomes a newline.
func readHTML(data []byte) (*sheet.Workbook, error) {
	text, err := toUTF8(data)
	if err != nil {
		return nil, fmt.Errorf("readHTML: decoding charset: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(RepairHTML(text)))
	if err != nil {
		return nil, fmt.Errorf("readHTML: parsing document: %w", err)
	}

	wb := &sheet.Workbook{}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			if rows := tableRows(n); len(rows) > 0 {
				wb.Sheets = append(wb.Sheets, sheet.Sheet{
					Name: fmt.Sprintf("table%d", len(wb.Sheets)+1),
					Rows: rows,
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return wb, nil
}

// tableRows collects the rows that belong to table itself, not to nested tables.
func tableRows(table *html.Node) [][]sheet.Cell {
	var rows [][]sheet.Cell
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Table:
				continue
			case atom.Tr:
				rows = append(rows, rowCells(c))
			default:
				walk(c)
			}
		}
	}
	walk(table)
	return rows
}

func rowCells(tr *html.Node) []sheet.Cell {
	var row []sheet.Cell
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		if v := cellText(c); v != "" {
			row = append(row, v)
		} else {
			row = append(row, nil)
		}
		for i := 1; i < colspan(c); i++ {
			row = append(row, nil)
		}
	}
	return row
}

func colspan(n *html.Node) int {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, "colspan") {
			if v, err := strconv.Atoi(strings.TrimSpace(a.Val)); err == nil && v > 1 {
				return min(v, maxColspan)
			}
		}
	}
	return 1
}

func cellText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(strings.ReplaceAll(b.String(), "\u00a0", " "))
}
