package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const version = "0.1.0"

const (
	ansiReset = "\033[0m"
	logoFile  = "logo.html"
)

// ansiColors maps CSS color values used in the logo file to terminal
// escapes.
var ansiColors = map[string]string{
	"black":   "\033[30m",
	"#000":    "\033[30m",
	"#000000": "\033[30m",
	"grey":    "\033[90m",
	"gray":    "\033[90m",
	"#808080": "\033[90m",
	"white":   "\033[97m",
	"#fff":    "\033[97m",
	"#ffffff": "\033[97m",
}

// printBanner plays the startup logo and version text. Any problem with
// the logo file silently degrades to the plain header; the banner is
// pure theater.
func printBanner() {
	f, err := os.Open(logoFile)
	if err != nil {
		printHeader()
		return
	}
	lines, err := loadLogo(f)
	f.Close()
	if err != nil {
		printHeader()
		return
	}

	fmt.Print("\033[2J\033[H") // clear console
	for _, line := range displayLines(lines) {
		fmt.Println(line)
		time.Sleep(50 * time.Millisecond)
	}

	typeLine(fmt.Sprintf("Card Identify Server \033[1;35mv%s%s", version, ansiReset), 500*time.Millisecond)
	typeLine("\033[36mKaiba Corp™"+ansiReset+" Mainframe. Loading...", 500*time.Millisecond)
	typeLine("\033[36mKaiba Corp™"+ansiReset+" Mainframe. \033[1;32mLoaded."+ansiReset, time.Second)
	typeLine("\033[33mVirtual Systems Ready."+ansiReset, 0)
	typeLine(strings.Repeat("*", 40), 500*time.Millisecond)
}

// printHeader prints the plain, banner-less version header.
func printHeader() {
	fmt.Printf("Card Identify Server v%s\n", version)
}

// typeLine prints a line character by character, then pauses.
func typeLine(text string, pause time.Duration) {
	for _, r := range text {
		fmt.Print(string(r))
		time.Sleep(30 * time.Millisecond)
	}
	fmt.Println()
	time.Sleep(pause)
}

// displayLines drops the leading line of the parsed logo, an artifact
// of the text extraction before the <pre> content.
func displayLines(lines []string) []string {
	if len(lines) > 1 {
		return lines[1:]
	}
	return lines
}

// loadLogo extracts ANSI-colored text lines from the logo HTML. Colors
// come from inline style attributes; the logo itself lives in a <pre>
// block so whitespace survives.
func loadLogo(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	root := findPre(doc)
	if root == nil {
		root = doc
	}

	var b strings.Builder
	renderNode(&b, root, "")
	return strings.Split(b.String(), "\n"), nil
}

func findPre(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "pre" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if pre := findPre(c); pre != nil {
			return pre
		}
	}
	return nil
}

func renderNode(b *strings.Builder, n *html.Node, inherited string) {
	if n.Type == html.TextNode {
		b.WriteString(inherited)
		b.WriteString(n.Data)
		b.WriteString(ansiReset)
		return
	}

	color := inherited
	if c := styleColor(n); c != "" {
		color = c
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c, color)
	}
}

// styleColor pulls the color declaration out of a node's inline style
// and maps it to an ANSI escape, if we know it.
func styleColor(n *html.Node) string {
	var style string
	for _, attr := range n.Attr {
		if attr.Key == "style" {
			style = attr.Val
			break
		}
	}

	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(strings.ToLower(prop)) == "color" {
			return ansiColors[strings.TrimSpace(strings.ToLower(val))]
		}
	}
	return ""
}
