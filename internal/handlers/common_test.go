package handlers

import "context"

func testCtx() context.Context { return context.Background() }
