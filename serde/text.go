// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package serde

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// FormatOptions configures the dialect-specific details of text
// serialization. The zero value (and a nil pointer) use the defaults.
type FormatOptions struct {
	// CSVDelimiter is the CSV field delimiter. Defaults to ','.
	CSVDelimiter byte
	// CSVNull is the unquoted CSV token representing a null value.
	// Defaults to `\N`.
	CSVNull string
}

func (o *FormatOptions) csvDelimiter() byte {
	if o == nil || o.CSVDelimiter == 0 {
		return ','
	}
	return o.CSVDelimiter
}

func (o *FormatOptions) csvNull() string {
	if o == nil || o.CSVNull == "" {
		return `\N`
	}
	return o.CSVNull
}

// Null representations written (and recognized) per dialect.
const (
	escapedNull   = `\N`
	quotedNull    = "NULL"
	jsonNull      = "null"
	wholeTextNull = "NULL"
)

// token is a text field materialized from the input exactly once, so that
// trial parses can be replayed against fresh readers without disturbing
// the outer stream cursor.
type token struct {
	data []byte
	// quoted is set for CSV fields that were enclosed in double quotes;
	// a quoted field can never be the null literal.
	quoted bool
}

func (t token) reader() *bufio.Reader {
	return bufio.NewReader(bytes.NewReader(t.data))
}

// readToken materializes one field from r under the dialect's own
// tokenization rules. The reader is left positioned exactly at the end of
// the token; delimiters are not consumed.
func readToken(r *bufio.Reader, d Dialect, opts *FormatOptions) (token, error) {
	switch d {
	case DialectEscaped:
		data, err := readUntilTabOrNewline(r)
		return token{data: data}, err
	case DialectRaw:
		data, err := readRawToken(r)
		return token{data: data}, err
	case DialectQuoted:
		data, err := readQuotedToken(r)
		return token{data: data}, err
	case DialectCSV:
		data, quoted, err := readCSVToken(r, opts.csvDelimiter())
		return token{data: data, quoted: quoted}, err
	case DialectJSON:
		data, err := readJSONToken(r)
		return token{data: data}, err
	case DialectWholeText:
		data, err := io.ReadAll(r)
		return token{data: data}, err
	}
	return token{}, fmt.Errorf("%w: cannot tokenize dialect %s", ErrInvalidArgument, d)
}

// isNullToken reports whether tok is the dialect's null representation.
// Checked before any alternative trial.
func isNullToken(tok token, d Dialect, opts *FormatOptions) bool {
	s := string(tok.data)
	switch d {
	case DialectEscaped, DialectRaw:
		return s == escapedNull
	case DialectQuoted:
		return s == quotedNull
	case DialectCSV:
		return !tok.quoted && s == opts.csvNull()
	case DialectJSON:
		return s == jsonNull
	case DialectWholeText:
		return s == wholeTextNull || s == escapedNull
	}
	return false
}

// writeNull emits the dialect's null representation.
func writeNull(w io.Writer, d Dialect, opts *FormatOptions) error {
	var s string
	switch d {
	case DialectEscaped, DialectRaw, DialectXML:
		s = escapedNull
	case DialectQuoted:
		s = quotedNull
	case DialectCSV:
		s = opts.csvNull()
	case DialectJSON:
		s = jsonNull
	case DialectWholeText:
		s = wholeTextNull
	default:
		return fmt.Errorf("%w: cannot write null for dialect %s", ErrInvalidArgument, d)
	}
	_, err := io.WriteString(w, s)
	return err
}

// readUntilTabOrNewline reads the raw bytes of an escaped or raw field,
// stopping before an unescaped tab or newline. Escape pairs are kept
// verbatim so the field can be unescaped (or not) by the value parser.
func readUntilTabOrNewline(r *bufio.Reader) ([]byte, error) {
	var out []byte
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if b == '\t' || b == '\n' || b == '\r' {
			r.UnreadByte()
			return out, nil
		}
		out = append(out, b)
		if b == '\\' {
			esc, err := r.ReadByte()
			if err == io.EOF {
				return out, nil
			}
			if err != nil {
				return nil, err
			}
			out = append(out, esc)
		}
	}
}

// readRawToken reads a raw field: everything up to the next tab or line
// break, with no escape processing at all.
func readRawToken(r *bufio.Reader) ([]byte, error) {
	var out []byte
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if b == '\t' || b == '\n' || b == '\r' {
			r.UnreadByte()
			return out, nil
		}
		out = append(out, b)
	}
}

// readQuotedToken reads one quoted-dialect field. A field starting with a
// single quote runs to the matching unescaped quote (quotes included in
// the token); anything else runs to the next structural stop byte.
func readQuotedToken(r *bufio.Reader) ([]byte, error) {
	first, err := r.ReadByte()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if first != '\'' {
		r.UnreadByte()
		return readBareQuotedToken(r)
	}
	out := []byte{'\''}
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: unterminated quoted string", ErrCorruptStream)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, b)
		switch b {
		case '\\':
			esc, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("%w: unterminated quoted string", ErrCorruptStream)
			}
			out = append(out, esc)
		case '\'':
			// Doubled quote is an escaped quote, not the end.
			next, err := r.ReadByte()
			if err == io.EOF {
				return out, nil
			}
			if err != nil {
				return nil, err
			}
			if next == '\'' {
				out = append(out, next)
				continue
			}
			r.UnreadByte()
			return out, nil
		}
	}
}

func readBareQuotedToken(r *bufio.Reader) ([]byte, error) {
	var out []byte
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		switch b {
		case '\t', '\n', '\r', ',', ')', ']':
			r.UnreadByte()
			return out, nil
		}
		out = append(out, b)
	}
}

// readCSVToken reads one CSV field. Quoted fields are unquoted (doubled
// quotes collapsed); unquoted fields run to the delimiter or end of line.
func readCSVToken(r *bufio.Reader, delim byte) (data []byte, quoted bool, err error) {
	first, err := r.ReadByte()
	if err == io.EOF {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if first != '"' {
		r.UnreadByte()
		var out []byte
		for {
			b, err := r.ReadByte()
			if err == io.EOF {
				return out, false, nil
			}
			if err != nil {
				return nil, false, err
			}
			if b == delim || b == '\n' || b == '\r' {
				r.UnreadByte()
				return out, false, nil
			}
			out = append(out, b)
		}
	}
	var out []byte
	for {
		b, err := r.ReadByte()
		if err == io.EOF {
			return nil, true, fmt.Errorf("%w: unterminated CSV quoted field", ErrCorruptStream)
		}
		if err != nil {
			return nil, true, err
		}
		if b != '"' {
			out = append(out, b)
			continue
		}
		next, err := r.ReadByte()
		if err == io.EOF {
			return out, true, nil
		}
		if err != nil {
			return nil, true, err
		}
		if next == '"' {
			out = append(out, '"')
			continue
		}
		r.UnreadByte()
		return out, true, nil
	}
}

// readJSONToken reads the syntactically delimited JSON value that starts
// at the reader's position: a string, a bracket-balanced object or array,
// or a bare literal/number.
func readJSONToken(r *bufio.Reader) ([]byte, error) {
	if err := skipJSONSpace(r); err != nil {
		return nil, err
	}
	first, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	r.UnreadByte()
	switch first {
	case '"':
		return readJSONString(r, nil)
	case '{', '[':
		return readJSONComposite(r)
	default:
		var out []byte
		for {
			b, err := r.ReadByte()
			if err == io.EOF {
				return out, nil
			}
			if err != nil {
				return nil, err
			}
			switch b {
			case ',', '}', ']', ' ', '\t', '\n', '\r':
				r.UnreadByte()
				return out, nil
			}
			out = append(out, b)
		}
	}
}

func skipJSONSpace(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		switch b {
		case ' ', '\t', '\n', '\r':
		default:
			return r.UnreadByte()
		}
	}
}

// readJSONString consumes a double-quoted JSON string including both
// quotes, appending the raw bytes to out.
func readJSONString(r *bufio.Reader, out []byte) ([]byte, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if b != '"' {
		return nil, fmt.Errorf("%w: expected JSON string", ErrCorruptStream)
	}
	out = append(out, '"')
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: unterminated JSON string", ErrCorruptStream)
		}
		out = append(out, b)
		switch b {
		case '\\':
			esc, err := r.ReadByte()
			if err != nil {
				return nil, fmt.Errorf("%w: unterminated JSON string", ErrCorruptStream)
			}
			out = append(out, esc)
		case '"':
			return out, nil
		}
	}
}

func readJSONComposite(r *bufio.Reader) ([]byte, error) {
	var out []byte
	depth := 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: unterminated JSON value", ErrCorruptStream)
		}
		switch b {
		case '"':
			r.UnreadByte()
			out, err = readJSONString(r, out)
			if err != nil {
				return nil, err
			}
			continue
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
		out = append(out, b)
		if depth == 0 {
			return out, nil
		}
	}
}

// writeEscapedText writes s with tab, newline and backslash escaped.
func writeEscapedText(w io.Writer, s string) error {
	var out []byte
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\t':
			out = append(out, '\\', 't')
		case '\n':
			out = append(out, '\\', 'n')
		case '\r':
			out = append(out, '\\', 'r')
		case '\\':
			out = append(out, '\\', '\\')
		default:
			out = append(out, c)
		}
	}
	_, err := w.Write(out)
	return err
}

// unescapeText reverses writeEscapedText.
func unescapeText(data []byte) string {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c != '\\' || i+1 == len(data) {
			out = append(out, c)
			continue
		}
		i++
		switch data[i] {
		case 't':
			out = append(out, '\t')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case '0':
			out = append(out, 0)
		default:
			out = append(out, data[i])
		}
	}
	return string(out)
}

// writeQuotedText writes s as a single-quoted literal with backslash
// escapes.
func writeQuotedText(w io.Writer, s string) error {
	out := []byte{'\''}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'':
			out = append(out, '\\', '\'')
		case '\\':
			out = append(out, '\\', '\\')
		default:
			out = append(out, c)
		}
	}
	out = append(out, '\'')
	_, err := w.Write(out)
	return err
}

// unquoteText parses a single-quoted literal produced by writeQuotedText
// (doubled-quote escapes are accepted as well).
func unquoteText(data []byte) (string, bool) {
	if len(data) < 2 || data[0] != '\'' || data[len(data)-1] != '\'' {
		return "", false
	}
	body := data[1 : len(data)-1]
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '\\':
			if i+1 == len(body) {
				return "", false
			}
			i++
			out = append(out, body[i])
		case '\'':
			if i+1 == len(body) || body[i+1] != '\'' {
				return "", false
			}
			i++
			out = append(out, '\'')
		default:
			out = append(out, c)
		}
	}
	return string(out), true
}

// writeCSVText writes s as a CSV field, quoting when it contains the
// delimiter, a quote or a line break.
func writeCSVText(w io.Writer, s string, delim byte) error {
	needQuote := false
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == delim || c == '"' || c == '\n' || c == '\r' {
			needQuote = true
			break
		}
	}
	if !needQuote {
		_, err := io.WriteString(w, s)
		return err
	}
	out := []byte{'"'}
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			out = append(out, '"', '"')
			continue
		}
		out = append(out, s[i])
	}
	out = append(out, '"')
	_, err := w.Write(out)
	return err
}

// writeXMLText writes s with XML metacharacters escaped.
func writeXMLText(w io.Writer, s string) error {
	return xml.EscapeText(w, []byte(s))
}
