package tools

import "github.com/webpilot-ai/webpilot/mcp"

func browseWebDef() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name: "browse_web",
		Description: "Browse the web to complete a task using AI-powered browser automation. " +
			"The agent navigates websites, clicks buttons, fills forms and reads pages like a " +
			"human user. Runs synchronously and returns when the task is done; for tasks that " +
			"may take more than 30 seconds, prefer start_web_task.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task": map[string]any{
					"type":        "string",
					"description": "What to accomplish, e.g. \"Find the top 3 gaming laptops on Amazon\".",
				},
				"url": map[string]any{
					"type":        "string",
					"description": "Starting webpage. Defaults to Google.",
				},
			},
			"required": []string{"task"},
		},
	}
}

func startWebTaskDef() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name: "start_web_task",
		Description: "Start a web browsing task in the background and return immediately. " +
			"Use this for longer tasks, then poll with check_web_task. Wait at least 5 seconds " +
			"between status checks.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task": map[string]any{
					"type":        "string",
					"description": "What to accomplish on the web.",
				},
				"url": map[string]any{
					"type":        "string",
					"description": "Starting webpage. Defaults to Google.",
				},
			},
			"required": []string{"task"},
		},
	}
}

func checkWebTaskDef() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name: "check_web_task",
		Description: "Check progress of a background web browsing task. Returns a compact " +
			"summary by default to keep your context window clean; honor recommended_poll_after " +
			"before checking again.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "string",
					"description": "Task ID from start_web_task.",
				},
				"compact": map[string]any{
					"type":        "boolean",
					"description": "Return a summary only (default true). Set false for the full progress log.",
				},
			},
			"required": []string{"task_id"},
		},
	}
}

func stopWebTaskDef() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name: "stop_web_task",
		Description: "Stop a running web browsing task and release its browser. Stopping a " +
			"task that already finished is a no-op and still succeeds.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "string",
					"description": "Task ID from start_web_task.",
				},
			},
			"required": []string{"task_id"},
		},
	}
}

func listWebTasksDef() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name: "list_web_tasks",
		Description: "List all web browsing tasks from this session as compact summaries, " +
			"including finished ones. Use check_web_task for details on a single task.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}
}

func getWebScreenshotsDef() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name: "get_web_screenshots",
		Description: "Retrieve the screenshot files captured during a browsing session, in " +
			"the order they were taken. Use this to review what the agent saw.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"session_id": map[string]any{
					"type":        "string",
					"description": "Session ID returned by browse_web or check_web_task.",
				},
			},
			"required": []string{"session_id"},
		},
	}
}

func waitDef() mcp.ToolDefinition {
	return mcp.ToolDefinition{
		Name: "wait",
		Description: "Wait for a number of seconds before continuing. Use it between status " +
			"checks instead of polling in a tight loop. Maximum 60 seconds per call.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"seconds": map[string]any{
					"type":        "integer",
					"description": "Seconds to wait, between 1 and 60.",
				},
			},
			"required": []string{"seconds"},
		},
	}
}
