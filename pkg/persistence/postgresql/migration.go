package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE ai_flows (
				id TEXT PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				department VARCHAR(50) NOT NULL,
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				is_active BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_ai_flows_department ON ai_flows(department);
			CREATE UNIQUE INDEX idx_ai_flows_one_active ON ai_flows(department) WHERE is_active;

			CREATE TABLE contacts (
				id TEXT PRIMARY KEY,
				name VARCHAR(255) NOT NULL DEFAULT '',
				phone VARCHAR(32) NOT NULL UNIQUE,
				email VARCHAR(255) NOT NULL DEFAULT '',
				department VARCHAR(50) NOT NULL DEFAULT '',
				tags TEXT[] NOT NULL DEFAULT '{}',
				source VARCHAR(50) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE conversations (
				id TEXT PRIMARY KEY,
				contact_id TEXT NOT NULL DEFAULT '',
				phone VARCHAR(32) NOT NULL,
				department VARCHAR(50) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('open', 'closed')),
				reengagement_count INTEGER NOT NULL DEFAULT 0,
				last_message_at TIMESTAMP WITH TIME ZONE,
				last_inbound_at TIMESTAMP WITH TIME ZONE,
				last_direction VARCHAR(20) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_conversations_phone ON conversations(phone, department, status);
			CREATE INDEX idx_conversations_awaiting ON conversations(status, last_direction, last_message_at);

			CREATE TABLE messages (
				id TEXT PRIMARY KEY,
				conversation_id TEXT NOT NULL DEFAULT '',
				phone VARCHAR(32) NOT NULL DEFAULT '',
				direction VARCHAR(20) NOT NULL,
				body TEXT NOT NULL,
				status VARCHAR(20) NOT NULL,
				department VARCHAR(50) NOT NULL DEFAULT '',
				sender VARCHAR(50) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_messages_conversation ON messages(conversation_id, created_at);

			CREATE TABLE system_settings (
				key VARCHAR(100) PRIMARY KEY,
				value TEXT NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE portal_leads_log (
				id TEXT PRIMARY KEY,
				portal VARCHAR(100) NOT NULL DEFAULT '',
				payload JSONB,
				status VARCHAR(20) NOT NULL,
				error TEXT NOT NULL DEFAULT '',
				contact_id TEXT NOT NULL DEFAULT '',
				conversation_id TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_portal_leads_log_created_at ON portal_leads_log(created_at);

			CREATE TABLE ai_behavior_config (
				department VARCHAR(50) PRIMARY KEY,
				agent_name VARCHAR(255) NOT NULL DEFAULT '',
				company_name VARCHAR(255) NOT NULL DEFAULT '',
				tone VARCHAR(255) NOT NULL DEFAULT '',
				business_rules TEXT[] NOT NULL DEFAULT '{}',
				script TEXT NOT NULL DEFAULT '',
				custom_instructions TEXT NOT NULL DEFAULT '',
				prompt_override TEXT NOT NULL DEFAULT '',
				reengagement_hours INTEGER NOT NULL DEFAULT 0,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`,
		2: `
			CREATE TABLE flow_sessions (
				conversation_id TEXT PRIMARY KEY,
				flow_id TEXT NOT NULL,
				current_node_id TEXT NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL,
				variables JSONB,
				tags TEXT[] NOT NULL DEFAULT '{}',
				error TEXT NOT NULL DEFAULT '',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`,
	}
}
