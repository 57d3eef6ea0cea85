package lookup

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/violation-lookup/internal/browser"
)

// BlockType describes the kind of anti-bot page served instead of the form.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// ErrBlocked is the cause recorded when the portal served a challenge page.
var ErrBlocked = eris.New("portal served an anti-bot page")

const blockProbeTimeout = 2 * time.Second

// DetectBlock classifies the visible text of a page.
func DetectBlock(text string) (bool, BlockType) {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "just a moment") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}

	if strings.Contains(lower, "captcha") {
		return true, BlockCaptcha
	}

	// A near-empty document asking for JavaScript never rendered the app.
	if len(strings.TrimSpace(lower)) < 200 && strings.Contains(lower, "javascript") {
		return true, BlockJSShell
	}

	return false, BlockNone
}

// probeBlock reads the page body after the form failed to appear. It
// returns err unchanged unless the body looks like a challenge page.
func probeBlock(ctx context.Context, page browser.Page, err error) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), blockProbeTimeout)
	defer cancel()

	text, ok, terr := page.Locator("body").TextContent(pctx)
	if terr != nil || !ok {
		return err
	}
	if blocked, kind := DetectBlock(text); blocked {
		return eris.Wrapf(ErrBlocked, "%s page (%v)", kind, err)
	}
	return err
}
