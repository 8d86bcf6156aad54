package action

import (
	"context"
	"errors"
)

// tweetDisabledMsg is the fixed message recorded while posting is switched
// off. Disabling is a normal, reportable failure mode, not a crash.
const tweetDisabledMsg = "Tweet posting is currently disabled. Connect an X/Twitter API integration to enable it."

// Tweeter is the post_tweet handler. The feature is disabled: every dispatch
// is a handled failure carrying tweetDisabledMsg.
type Tweeter struct{}

func (Tweeter) Execute(ctx context.Context, params map[string]any) (string, error) {
	return "", errors.New(tweetDisabledMsg)
}
