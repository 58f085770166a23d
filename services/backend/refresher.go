package backendsvc

import (
	"time"

	"github.com/collegepense/pense/core"
	"github.com/collegepense/pense/core/session"
)

// reschedule hands the latest session to the refresher, starting it on first use.
// Only the latest session matters: a pending one is replaced.
func (c *Client) reschedule(sess *session.Session) {
	if !c.opts.AutoRefresh {
		return
	}

	c.scheduleMu.Lock()
	defer c.scheduleMu.Unlock()
	if c.closed {
		return
	}
	if !c.loopStarted {
		c.loopStarted = true
		go c.refreshLoop()
	}
	select {
	case <-c.schedule:
	default:
	}
	c.schedule <- copySession(sess)
}

// refreshLoop renews the session RefreshMargin before it expires, until Close.
func (c *Client) refreshLoop() {
	defer close(c.loopDone)

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		current *session.Session
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timerC = nil, nil
	}
	startTimer := func(d time.Duration) {
		stopTimer()
		if d < 0 {
			d = 0
		}
		timer = time.NewTimer(d)
		timerC = timer.C
	}

	for {
		select {
		case <-c.stopCtx.Done():
			stopTimer()
			return

		case sess := <-c.schedule:
			current = sess
			if current == nil || current.ExpiresAt.IsZero() || current.RefreshToken == "" {
				stopTimer()
				continue
			}
			startTimer(current.ExpiresAt.Add(-c.opts.RefreshMargin).Sub(nowFunc()))

		case <-timerC:
			timer, timerC = nil, nil
			if current == nil {
				continue
			}
			refreshed, err := c.refresh(c.stopCtx, current.RefreshToken)
			switch {
			case err == nil:
				// setSession reschedules through c.schedule; pick it up on the next iteration
				c.setSessionIf(c.stopCtx, current.RefreshToken, refreshed, session.TokenRefreshed)
			case c.stopCtx.Err() != nil:
				return
			case core.IsAuthError(err, core.AuthNetwork):
				c.opts.Logger.Warn("refreshing session, will retry", err)
				startTimer(c.opts.RetryInterval)
			default:
				// the refresh token was rejected: the session is gone
				c.opts.Logger.Info("session refresh rejected, signing out", err)
				c.setSessionIf(c.stopCtx, current.RefreshToken, nil, session.SignedOut)
			}
		}
	}
}
