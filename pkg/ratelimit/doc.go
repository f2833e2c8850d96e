// Package ratelimit paces page visits on top of golang.org/x/time/rate.
//
//	pacer := ratelimit.NewPacer(2 * time.Second)
//	for page := range pages {
//	    if err := pacer.Wait(ctx); err != nil {
//	        return err
//	    }
//	    visit(page)
//	    pacer.Done()
//	}
package ratelimit
