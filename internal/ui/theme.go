package ui

import (
	"context"
	"log/slog"
	"sync"

	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/slacksift/slacksift/internal/logging"
)

var uiLog = logging.ForComponent(logging.CompUI)

// ResolveTheme maps a configured theme preference to a concrete theme name.
// "system" queries the OS dark mode setting and falls back to dark when the
// platform gives no answer.
func ResolveTheme(pref string) string {
	if pref != "system" {
		return pref
	}
	isDark, err := dark.IsDarkMode()
	if err != nil {
		uiLog.Warn("dark_mode_probe_failed", slog.String("error", err.Error()))
		return "dark"
	}
	return themeName(isDark)
}

func themeName(isDark bool) string {
	if isDark {
		return "dark"
	}
	return "light"
}

// ThemeWatcher follows OS dark mode changes while the browser is open and
// reports the matching theme name. Only used when the configured theme is
// "system".
type ThemeWatcher struct {
	changeCh  chan string
	closeOnce sync.Once
	cancel    context.CancelFunc
}

// NewThemeWatcher starts watching for OS dark mode flips.
// Returns nil if the platform does not support watching (caller keeps the
// theme it resolved at startup).
func NewThemeWatcher(parentCtx context.Context) *ThemeWatcher {
	ctx, cancel := context.WithCancel(parentCtx)

	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Warn("theme_watcher_init_failed", slog.String("error", err.Error()))
		return nil
	}

	tw := &ThemeWatcher{
		changeCh: make(chan string, 1),
		cancel:   cancel,
	}

	go func() {
		defer close(tw.changeCh)
		for {
			select {
			case <-ctx.Done():
				return
			case isDark, ok := <-events:
				if !ok {
					return
				}
				// Drop the update if the consumer has not read the
				// previous one yet; only the latest value matters.
				select {
				case tw.changeCh <- themeName(isDark):
				default:
					select {
					case <-tw.changeCh:
					default:
					}
					tw.changeCh <- themeName(isDark)
				}
			case err, ok := <-errs:
				if ok && err != nil {
					uiLog.Warn("theme_watcher_error", slog.String("error", err.Error()))
				}
			}
		}
	}()
	return tw
}

// Changes returns the channel that receives resolved theme names.
func (tw *ThemeWatcher) Changes() <-chan string {
	return tw.changeCh
}

// Close stops the watcher. Safe to call multiple times.
func (tw *ThemeWatcher) Close() {
	tw.closeOnce.Do(tw.cancel)
}
