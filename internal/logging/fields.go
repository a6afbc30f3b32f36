package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 method/url/请求 ID 字段，供静态服务与代理的请求日志复用。
func RequestFields(action, method, url, requestID string) logrus.Fields {
	fields := logrus.Fields{
		"action": action,
		"method": method,
		"url":    url,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}

// AgentFields 描述缓存代理的事件上下文。
func AgentFields(event, generation string) logrus.Fields {
	return logrus.Fields{
		"action":     "agent",
		"event":      event,
		"generation": generation,
	}
}
