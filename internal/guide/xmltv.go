/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package guide

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/friendsincode/mimir_tv/internal/models"
)

// xmltvTime is the timestamp layout XMLTV consumers expect.
const xmltvTime = "20060102150405 -0700"

type xmltvDisplayName struct {
	Value string `xml:",chardata"`
}

type xmltvChannel struct {
	XMLName      xml.Name           `xml:"channel"`
	ID           string             `xml:"id,attr"`
	DisplayNames []xmltvDisplayName `xml:"display-name"`
}

type xmltvProgramme struct {
	XMLName  xml.Name `xml:"programme"`
	Start    string   `xml:"start,attr"`
	Stop     string   `xml:"stop,attr"`
	Channel  string   `xml:"channel,attr"`
	Title    string   `xml:"title"`
	Desc     string   `xml:"desc,omitempty"`
	Category string   `xml:"category,omitempty"`
}

type xmltvDocument struct {
	XMLName    xml.Name         `xml:"tv"`
	Generator  string           `xml:"generator-info-name,attr"`
	Channels   []xmltvChannel   `xml:"channel"`
	Programmes []xmltvProgramme `xml:"programme"`
}

// WriteXMLTV renders channels and their guide windows as an XMLTV
// document. Channels appear even when their window is empty so players
// keep a stable lineup.
func WriteXMLTV(w io.Writer, channels []models.Channel, programs map[string][]ProgramEntry) error {
	doc := xmltvDocument{Generator: "mimirtv"}

	for _, ch := range channels {
		doc.Channels = append(doc.Channels, xmltvChannel{
			ID: ch.ID,
			DisplayNames: []xmltvDisplayName{
				{Value: ch.Name},
				{Value: strconv.Itoa(ch.Number)},
			},
		})
		for _, entry := range programs[ch.ID] {
			doc.Programmes = append(doc.Programmes, xmltvProgramme{
				Start:    entry.Start.Format(xmltvTime),
				Stop:     entry.End.Format(xmltvTime),
				Channel:  ch.ID,
				Title:    entry.Title,
				Desc:     entry.Overview,
				Category: string(entry.Kind),
			})
		}
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write xmltv header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode xmltv: %w", err)
	}
	return nil
}
